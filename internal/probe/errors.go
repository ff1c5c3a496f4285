package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

const genericError = "something went wrong"

// ErrInvalidURL marks a target that cannot be requested at all.
var ErrInvalidURL = errors.New("invalid URL")

// Outcome tags the result of a single fetch attempt.
type Outcome int

// Attempt outcomes. The retry loop branches on these only.
const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeTerminal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FailureKind names the category of a failed attempt.
type FailureKind string

// Failure kinds. The first four are transient and retried.
const (
	KindInvalidURL FailureKind = "invalid_url"
	KindConnect    FailureKind = "connect"
	KindTimeout    FailureKind = "timeout"
	KindResponse   FailureKind = "response"
	KindCanceled   FailureKind = "canceled"
	KindUnexpected FailureKind = "unexpected"
)

// Transient reports whether failures of this kind are retried.
func (k FailureKind) Transient() bool {
	switch k {
	case KindInvalidURL, KindConnect, KindTimeout, KindResponse:
		return true
	default:
		return false
	}
}

func (k FailureKind) outcome() Outcome {
	if k.Transient() {
		return OutcomeRetryable
	}
	return OutcomeTerminal
}

// FetchError is returned by fetchers that already know the failure category.
type FetchError struct {
	Kind FailureKind
	Err  error
}

// NewFetchError wraps err with kind.
func NewFetchError(kind FailureKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Classify maps an attempt error to its outcome and failure kind. A done
// parent context always yields a terminal cancellation, so per-attempt
// deadlines are told apart from the caller giving up.
func Classify(parent context.Context, err error) (Outcome, FailureKind) {
	if err == nil {
		return OutcomeSuccess, ""
	}
	if parent != nil && parent.Err() != nil {
		return OutcomeTerminal, KindCanceled
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind.outcome(), fetchErr.Kind
	}
	kind := KindOf(err)
	return kind.outcome(), kind
}

// KindOf inspects a raw error from net/http or a transport.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrInvalidURL):
		return KindInvalidURL
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return KindInvalidURL
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnect
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return KindConnect
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnect
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return KindResponse
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return KindConnect
		}
		return KindResponse
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindResponse
	}
	return KindUnexpected
}

// ValidateURL rejects targets that are not absolute http(s) URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w %q: unsupported scheme %q", ErrInvalidURL, raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w %q: missing host", ErrInvalidURL, raw)
	}
	return u, nil
}
