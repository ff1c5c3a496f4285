package probe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Default engine settings.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxConcurrency = 51
	DefaultMaxAttempts    = 5
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko)" +
		" Chrome/85.0.4183.102 Safari/537.36"
)

// Config holds the knobs of a single engine. It is decoupled from Viper so
// the engine can be built and tested without the CLI.
type Config struct {
	Timeout        time.Duration
	MaxConcurrency int
	MaxAttempts    int
	// UserAgent is sent by the fetch backend built for this engine.
	UserAgent      string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be >= 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1")
	}
	return nil
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics attaches an instrumentation sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithObserver registers a callback invoked as each task finishes. It may be
// called from many goroutines at once.
func WithObserver(fn Observer) Option {
	return func(e *Engine) { e.observer = fn }
}

// WithClock overrides the wall clock used for run timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the run ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// Engine drives concurrent fetches behind a shared gate.
type Engine struct {
	cfg      Config
	fetcher  Fetcher
	policy   RetryPolicy
	gate     *semaphore.Weighted
	metrics  Metrics
	observer Observer
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
}

// New builds an Engine. A nil policy means immediate retry up to
// cfg.MaxAttempts.
func New(cfg Config, fetcher Fetcher, policy RetryPolicy, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if policy == nil {
		policy = NewImmediateRetryPolicy(cfg.MaxAttempts)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		policy:  policy,
		gate:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		metrics: nopMetrics{},
		clock:   wallClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger.Debug("engine created",
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("max_attempts", cfg.MaxAttempts),
	)
	return e, nil
}

// Run fetches every URL and returns one result per input, in input order.
// It never fails; per-URL errors are recorded in the results.
func (e *Engine) Run(ctx context.Context, urls []string) Summary {
	summary := Summary{
		RunID:   e.newRunID(),
		Started: e.clock.Now(),
		Results: make([]Result, len(urls)),
	}
	logger := e.logger.With(zap.String("run_id", summary.RunID))
	logger.Debug("run started", zap.Int("urls", len(urls)))

	var attempts, failedAttempts atomic.Int64
	var g errgroup.Group
	for i, rawURL := range urls {
		g.Go(func() error {
			res := e.fetchOne(ctx, logger, rawURL, &attempts, &failedAttempts)
			summary.Results[i] = res
			e.notify(logger, i, rawURL, res)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range summary.Results {
		if res.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	summary.Attempts = attempts.Load()
	summary.FailedAttempts = failedAttempts.Load()
	summary.Finished = e.clock.Now()

	logger.Info("run finished",
		zap.Int("urls", len(urls)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int64("attempts", summary.Attempts),
		zap.Int64("failed_attempts", summary.FailedAttempts),
		zap.Duration("elapsed", summary.Duration()),
	)
	return summary
}

func (e *Engine) fetchOne(
	ctx context.Context,
	logger *zap.Logger,
	rawURL string,
	attempts *atomic.Int64,
	failedAttempts *atomic.Int64,
) (result Result) {
	log := logger.With(zap.String("url", rawURL))
	log.Debug("request started")

	if err := e.gate.Acquire(ctx, 1); err != nil {
		log.Warn("gate acquire aborted", zap.Error(err))
		return failureResult(rawURL, terminalText(err))
	}
	defer e.gate.Release(1)
	defer func() {
		if r := recover(); r != nil {
			log.Error("fetch task panicked", zap.Any("panic", r))
			result = failureResult(rawURL, fmt.Sprintf("%s: %v", genericError, r))
		}
	}()

	for attempt := 1; ; attempt++ {
		resp, elapsed, err := e.attempt(ctx, rawURL)
		attempts.Add(1)
		outcome, kind := Classify(ctx, err)
		e.metrics.ObserveAttempt(outcome, kind, elapsed)

		if outcome == OutcomeSuccess {
			log.Debug("request succeeded",
				zap.Int("status_code", resp.StatusCode),
				zap.Int("attempt", attempt),
				zap.Int("attempts_left", e.cfg.MaxAttempts-attempt),
			)
			return Result{
				URL:           rawURL,
				StatusCode:    resp.StatusCode,
				ContentLength: resp.DeclaredLength(),
				BodyLength:    resp.BodyLength,
			}
		}

		failedAttempts.Add(1)
		log.Warn("failed attempt",
			zap.Int("attempt", attempt),
			zap.String("kind", string(kind)),
			zap.Stringer("outcome", outcome),
			zap.Error(err),
		)
		if outcome == OutcomeTerminal {
			return failureResult(rawURL, terminalText(err))
		}
		if attempt >= e.cfg.MaxAttempts || !e.policy.ShouldRetry(outcome, attempt) {
			return failureResult(rawURL, err.Error())
		}
		if wait := e.policy.Backoff(attempt); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				return failureResult(rawURL, terminalText(err))
			}
		}
	}
}

// notify hands a finished result to the metrics sink and the observer. A
// panic in either is logged and swallowed; the result is already stored.
func (e *Engine) notify(logger *zap.Logger, index int, rawURL string, res Result) {
	guard := func(hook string, fn func()) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("result hook panicked",
					zap.String("hook", hook),
					zap.String("url", rawURL),
					zap.Int("index", index),
					zap.Any("panic", r),
				)
			}
		}()
		fn()
	}
	guard("metrics", func() { e.metrics.ObserveResult(rawURL, res) })
	if e.observer != nil {
		guard("observer", func() { e.observer(index, res) })
	}
}

func (e *Engine) attempt(ctx context.Context, rawURL string) (Response, time.Duration, error) {
	e.metrics.IncInflight()
	defer e.metrics.DecInflight()

	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.fetcher.Fetch(attemptCtx, rawURL)
	return resp, time.Since(start), err
}

func (e *Engine) newRunID() string {
	if e.ids == nil {
		return ""
	}
	id, err := e.ids.NewID()
	if err != nil {
		e.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func terminalText(err error) string {
	if err == nil || err.Error() == "" {
		return genericError
	}
	return genericError + ": " + err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
