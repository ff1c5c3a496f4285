// Package fetcher holds the HTTP plumbing shared by the fetch backends.
package fetcher

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/JakeFAU/urlprobe/internal/probe"
)

// TransportConfig tunes the shared connection pool.
type TransportConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify    bool
	MaxIdleConns          int
	// ResponseHeaderTimeout bounds the wait for response headers; zero leaves
	// it to the per-attempt context.
	ResponseHeaderTimeout time.Duration
}

// NewTransport builds the transport used by every backend. Compression is
// disabled so the declared Content-Length describes the bytes we count.
func NewTransport(cfg TransportConfig) (*http.Transport, error) {
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 100
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdle,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
		// #nosec G402 -- verification is only disabled on explicit request.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	return tr, nil
}

// WrapError tags a transport error with its failure kind. Errors that
// cannot be classified fall back to the given kind when it is non-empty.
func WrapError(err error, fallback probe.FailureKind) error {
	if err == nil {
		return nil
	}
	var fetchErr *probe.FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	kind := probe.KindOf(err)
	if kind == probe.KindUnexpected && fallback != "" {
		kind = fallback
	}
	return probe.NewFetchError(kind, err)
}

// InvalidURL validates rawURL and returns a tagged error when it is unusable.
func InvalidURL(rawURL string) error {
	if _, err := probe.ValidateURL(rawURL); err != nil {
		return probe.NewFetchError(probe.KindInvalidURL, err)
	}
	return nil
}
