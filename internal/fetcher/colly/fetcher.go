// Package collyfetcher implements probe.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/urlprobe/internal/fetcher"
	"github.com/JakeFAU/urlprobe/internal/probe"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the shared pooled transport.
	Transport http.RoundTripper
	fetcher.TransportConfig
}

// Fetcher implements probe.Fetcher using the Colly collector. Colly decodes
// bodies with a non-UTF-8 charset, so BodyLength is the decoded size.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = probe.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = probe.DefaultTimeout
	}
	rt := cfg.Transport
	if rt == nil {
		tr, err := fetcher.NewTransport(cfg.TransportConfig)
		if err != nil {
			return nil, err
		}
		rt = tr
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(0),
	)
	c.DisableCookies()
	c.WithTransport(rt)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{cfg: cfg, baseCollector: c}, nil
}

// Fetch visits rawURL once with a cloned collector.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (probe.Response, error) {
	if err := fetcher.InvalidURL(rawURL); err != nil {
		return probe.Response{}, err
	}
	var (
		result   probe.Response
		got      bool
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, &result, &got, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return probe.Response{}, err
	}
	if !got {
		return probe.Response{}, probe.NewFetchError(probe.KindResponse, errors.New("colly fetch produced no result"))
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	result *probe.Response,
	got *bool,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		var header http.Header
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		*result = probe.Response{
			StatusCode: r.StatusCode,
			Header:     header,
			BodyLength: int64(len(r.Body)),
		}
		*got = true
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fetcher.WrapError(fmt.Errorf("colly fetch canceled: %w", ctx.Err()), "")
	case err := <-done:
		if err != nil {
			return fetcher.WrapError(fmt.Errorf("colly visit failed: %w", err), probe.KindResponse)
		}
		if *fetchErr != nil {
			return fetcher.WrapError(fmt.Errorf("colly response failed: %w", *fetchErr), probe.KindResponse)
		}
		return nil
	}
}
