package nethttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/urlprobe/internal/probe"
)

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello"))
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{UserAgent: "probe-test/1.0", Timeout: time.Second})
	require.NoError(t, err)
	defer f.CloseIdleConnections()

	resp, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(5), resp.BodyLength)
	assert.Equal(t, int64(5), resp.DeclaredLength())
	assert.Equal(t, "probe-test/1.0", gotUA.Load())
}

func TestFetch_DeclaredAndActualLengthsDiffer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 10)))
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		_, _ = w.Write([]byte(strings.Repeat("b", 10)))
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{Timeout: time.Second})
	require.NoError(t, err)

	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(20), resp.BodyLength)
	assert.Zero(t, resp.DeclaredLength(), "chunked responses have no Content-Length")
}

func TestFetch_ServerErrorIsAResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{Timeout: time.Second})
	require.NoError(t, err)

	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int64(len("nope\n")), resp.BodyLength)
}

func TestFetch_InvalidURL(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "not-a-url")
	var fetchErr *probe.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, probe.KindInvalidURL, fetchErr.Kind)
}

func TestFetch_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f, err := New(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL)
	outcome, kind := probe.Classify(context.Background(), err)
	assert.Equal(t, probe.OutcomeRetryable, outcome)
	assert.Equal(t, probe.KindTimeout, kind)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	f, err := New(Config{Timeout: time.Second})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), fmt.Sprintf("http://%s/", addr))
	outcome, kind := probe.Classify(context.Background(), err)
	assert.Equal(t, probe.OutcomeRetryable, outcome)
	assert.Equal(t, probe.KindConnect, kind)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return fn(r) }

func TestFetch_TransportOverride(t *testing.T) {
	t.Parallel()

	calls := 0
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
		}
		return nil, errors.New("malformed HTTP response")
	})
	f, err := New(Config{Transport: rt})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "http://example.test/")
	_, kind := probe.Classify(context.Background(), err)
	assert.Equal(t, probe.KindConnect, kind)

	_, err = f.Fetch(context.Background(), "http://example.test/")
	_, kind = probe.Classify(context.Background(), err)
	assert.Equal(t, probe.KindResponse, kind)
}

func TestFetch_WithEngine(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{Timeout: time.Second})
	require.NoError(t, err)
	e, err := probe.New(probe.Config{Timeout: time.Second, MaxConcurrency: 2, MaxAttempts: 2}, f, nil, nil)
	require.NoError(t, err)

	urls := []string{srv.URL + "/ok", srv.URL + "/missing", "not-a-url"}
	summary := e.Run(context.Background(), urls)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, probe.Result{URL: urls[0], StatusCode: 200, ContentLength: 5, BodyLength: 5}, summary.Results[0])
	assert.Equal(t, http.StatusNotFound, summary.Results[1].StatusCode)
	assert.Empty(t, summary.Results[1].Error)
	assert.NotEmpty(t, summary.Results[2].Error)
	assert.Equal(t, int64(4), summary.Attempts)
}
