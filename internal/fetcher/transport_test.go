package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/urlprobe/internal/probe"
)

func TestNewTransport(t *testing.T) {
	t.Parallel()

	tr, err := NewTransport(TransportConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, tr.DisableCompression)
	assert.Equal(t, 100, tr.MaxIdleConns)
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
	assert.Contains(t, tr.TLSClientConfig.NextProtos, "h2")

	assert.Zero(t, tr.ResponseHeaderTimeout)

	tr, err = NewTransport(TransportConfig{MaxIdleConns: 7, ResponseHeaderTimeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 7, tr.MaxIdleConns)
	assert.Equal(t, 3*time.Second, tr.ResponseHeaderTimeout)
	assert.False(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WrapError(nil, probe.KindResponse))

	var fetchErr *probe.FetchError
	err := WrapError(errors.New("malformed HTTP response"), probe.KindResponse)
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, probe.KindResponse, fetchErr.Kind)

	err = WrapError(errors.New("strange"), "")
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, probe.KindUnexpected, fetchErr.Kind)

	err = WrapError(context.DeadlineExceeded, probe.KindResponse)
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, probe.KindTimeout, fetchErr.Kind)

	tagged := probe.NewFetchError(probe.KindConnect, errors.New("refused"))
	assert.Same(t, tagged, WrapError(tagged, probe.KindResponse))
}

func TestInvalidURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, InvalidURL("https://example.com"))
	var fetchErr *probe.FetchError
	require.ErrorAs(t, InvalidURL("not-a-url"), &fetchErr)
	assert.Equal(t, probe.KindInvalidURL, fetchErr.Kind)
	assert.ErrorIs(t, fetchErr, probe.ErrInvalidURL)
}
