// Package nethttp implements probe.Fetcher on top of net/http.
package nethttp

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/urlprobe/internal/fetcher"
	"github.com/JakeFAU/urlprobe/internal/probe"
)

// Config controls client behavior.
type Config struct {
	UserAgent string
	// Timeout is a backstop for the client; the engine also bounds every
	// attempt with a context deadline.
	Timeout time.Duration
	// Transport overrides the default pooled transport (tests inject mocks).
	Transport http.RoundTripper
	fetcher.TransportConfig
}

// Fetcher issues one GET per call and counts the body bytes.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	rt := cfg.Transport
	if rt == nil {
		tr, err := fetcher.NewTransport(cfg.TransportConfig)
		if err != nil {
			return nil, err
		}
		rt = tr
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = probe.DefaultUserAgent
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Transport: rt, Timeout: cfg.Timeout},
	}, nil
}

// Fetch executes a single HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (probe.Response, error) {
	if err := fetcher.InvalidURL(rawURL); err != nil {
		return probe.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return probe.Response{}, probe.NewFetchError(probe.KindInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return probe.Response{}, fetcher.WrapError(err, probe.KindResponse)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return probe.Response{}, fetcher.WrapError(err, probe.KindResponse)
	}
	return probe.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		BodyLength: n,
	}, nil
}

// CloseIdleConnections releases pooled connections after a run.
func (f *Fetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}
