package probe

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Result is the per-URL record emitted by a run. It is written once, after
// a success or after the retry budget is spent.
type Result struct {
	URL           string `json:"url"`
	StatusCode    int    `json:"status_code"`
	ContentLength int64  `json:"content_length"`
	BodyLength    int64  `json:"body_length"`
	Error         string `json:"error"`
}

// Failed reports whether the result records a total failure.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Response is what a Fetcher returns for one completed HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	// BodyLength is the number of bytes actually read from the body stream.
	BodyLength int64
}

// DeclaredLength returns the Content-Length header value, or 0 when the
// header is absent or not a non-negative integer.
func (r Response) DeclaredLength() int64 {
	if r.Header == nil {
		return 0
	}
	raw := strings.TrimSpace(r.Header.Get("Content-Length"))
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Summary is returned by Engine.Run alongside the ordered results.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []Result
	// Succeeded and Failed count results, not attempts.
	Succeeded int
	Failed    int
	// Attempts is the total number of fetch attempts issued.
	Attempts int64
	// FailedAttempts counts every failed attempt, retried or not.
	FailedAttempts int64
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

func failureResult(url, errText string) Result {
	if errText == "" {
		errText = genericError
	}
	return Result{URL: url, Error: errText}
}
