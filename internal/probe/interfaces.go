package probe

import (
	"context"
	"time"
)

// Fetcher performs a single HTTP GET attempt. Implementations must honor
// ctx, which carries the per-attempt deadline.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Response, error)
}

// RetryPolicy decides whether another attempt is made and how long to wait.
type RetryPolicy interface {
	ShouldRetry(outcome Outcome, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Metrics receives engine instrumentation. All methods must be safe for
// concurrent use.
type Metrics interface {
	ObserveAttempt(outcome Outcome, kind FailureKind, duration time.Duration)
	ObserveResult(rawURL string, result Result)
	IncInflight()
	DecInflight()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Observer is notified once per finished task with the input index.
type Observer func(index int, result Result)

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(Outcome, FailureKind, time.Duration) {}
func (nopMetrics) ObserveResult(string, Result)                       {}
func (nopMetrics) IncInflight()                                       {}
func (nopMetrics) DecInflight()                                       {}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }
