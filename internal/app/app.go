// Package app wires configuration into a probe run and owns the services it needs.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlprobe/internal/clock/system"
	"github.com/JakeFAU/urlprobe/internal/config"
	"github.com/JakeFAU/urlprobe/internal/fetcher"
	collyfetcher "github.com/JakeFAU/urlprobe/internal/fetcher/colly"
	"github.com/JakeFAU/urlprobe/internal/fetcher/nethttp"
	"github.com/JakeFAU/urlprobe/internal/id/uuid"
	"github.com/JakeFAU/urlprobe/internal/metrics"
	"github.com/JakeFAU/urlprobe/internal/probe"
	pubsubpublisher "github.com/JakeFAU/urlprobe/internal/publisher/pubsub"
	"github.com/JakeFAU/urlprobe/internal/report"
	"github.com/JakeFAU/urlprobe/internal/storage"
	"github.com/JakeFAU/urlprobe/internal/urllist"
)

// ErrNoURLs is returned when neither the input file nor the arguments name a URL.
var ErrNoURLs = errors.New("no URLs to probe")

// Publisher sends the completion notification.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Deps overrides the services New would otherwise build from the config.
// Every field is optional.
type Deps struct {
	Fetcher probe.Fetcher
	// Store and Object replace the destination named by output.path.
	Store     storage.BlobStore
	Object    string
	Publisher Publisher
	Registry  *prometheus.Registry
	Clock     probe.Clock
	IDs       probe.IDGenerator
	// Progress receives the progress bar when progress.enabled is set.
	Progress io.Writer
}

// Notification is the JSON payload published after a run.
type Notification struct {
	RunID          string    `json:"run_id"`
	Total          int       `json:"total"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	FailedAttempts int64     `json:"failed_attempts"`
	OutputURI      string    `json:"output_uri"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// App holds the services shared by one invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	deps   Deps

	closers []func() error
}

// New validates cfg and returns an App. Services are created lazily by Run.
func New(cfg config.Config, logger *zap.Logger, deps Deps) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Progress == nil {
		deps.Progress = os.Stderr
	}
	return &App{cfg: cfg, logger: logger, deps: deps}, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Registry returns the Prometheus registry the run reports into.
func (a *App) Registry() *prometheus.Registry {
	return a.deps.Registry
}

// Run probes the configured URLs plus args, writes the report and sends the
// optional notification. Per-URL failures do not make Run fail.
func (a *App) Run(ctx context.Context, args []string) (probe.Summary, error) {
	urls, err := a.collectURLs(args)
	if err != nil {
		return probe.Summary{}, err
	}

	store, object, err := a.openStore(ctx)
	if err != nil {
		return probe.Summary{}, err
	}

	engineCfg := a.cfg.Engine()
	f, err := a.buildFetcher(engineCfg)
	if err != nil {
		return probe.Summary{}, err
	}

	recorder := metrics.NewRecorder(a.deps.Registry)
	opts := []probe.Option{
		probe.WithMetrics(recorder),
		probe.WithClock(a.deps.Clock),
		probe.WithIDGenerator(a.deps.IDs),
	}
	var bar *progressbar.ProgressBar
	if a.cfg.Progress.Enabled {
		bar = newProgressBar(a.deps.Progress, len(urls))
		opts = append(opts, probe.WithObserver(func(int, probe.Result) {
			_ = bar.Add(1)
		}))
	}

	engine, err := probe.New(engineCfg, f, a.cfg.RetryPolicy(), a.logger, opts...)
	if err != nil {
		return probe.Summary{}, fmt.Errorf("create engine: %w", err)
	}

	summary := engine.Run(ctx, urls)
	if bar != nil {
		_ = bar.Finish()
	}

	// The report is written even when ctx was canceled mid-run.
	writeCtx := context.WithoutCancel(ctx)
	uri, err := report.Write(writeCtx, store, object, summary.Results, a.cfg.Output.Pretty)
	if err != nil {
		return summary, err
	}
	a.logger.Info("report written", zap.String("uri", uri), zap.Int("results", len(summary.Results)))

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, a.deps.Registry); err != nil {
			return summary, err
		}
		a.logger.Debug("metrics written", zap.String("path", path))
	}

	if err := a.notify(writeCtx, summary, uri); err != nil {
		return summary, err
	}
	return summary, nil
}

// Close releases clients created during Run.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) collectURLs(args []string) ([]string, error) {
	var urls []string
	if path := a.cfg.Input.Path; path != "" {
		fromFile, err := urllist.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		urls = append(urls, fromFile...)
	}
	for _, arg := range args {
		if arg != "" {
			urls = append(urls, arg)
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

func (a *App) openStore(ctx context.Context) (storage.BlobStore, string, error) {
	if a.deps.Store != nil {
		object := a.deps.Object
		if object == "" {
			object = a.cfg.Output.Path
		}
		return a.deps.Store, object, nil
	}
	store, object, closeFn, err := storage.Open(ctx, a.cfg.Output.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open output %s: %w", a.cfg.Output.Path, err)
	}
	a.closers = append(a.closers, closeFn)
	return store, object, nil
}

// buildFetcher creates the configured backend. User-Agent and timeout come
// from the engine config so both backends send what the engine was built with.
func (a *App) buildFetcher(engineCfg probe.Config) (probe.Fetcher, error) {
	if a.deps.Fetcher != nil {
		return a.deps.Fetcher, nil
	}
	tc := fetcher.TransportConfig{
		InsecureSkipVerify:    a.cfg.HTTP.InsecureSkipVerify,
		MaxIdleConns:          a.cfg.HTTP.MaxIdleConns,
		ResponseHeaderTimeout: a.cfg.HTTP.ResponseHeaderTimeout,
	}
	if tc.InsecureSkipVerify {
		a.logger.Warn("TLS certificate verification is disabled")
	}
	a.logger.Debug("building fetcher", zap.String("backend", a.cfg.Fetch.Backend))

	switch a.cfg.Fetch.Backend {
	case config.BackendColly:
		f, err := collyfetcher.New(collyfetcher.Config{
			UserAgent:       engineCfg.UserAgent,
			Timeout:         engineCfg.Timeout,
			TransportConfig: tc,
		})
		if err != nil {
			return nil, fmt.Errorf("create colly fetcher: %w", err)
		}
		return f, nil
	case config.BackendNetHTTP:
		f, err := nethttp.New(nethttp.Config{
			UserAgent:       engineCfg.UserAgent,
			Timeout:         engineCfg.Timeout,
			TransportConfig: tc,
		})
		if err != nil {
			return nil, fmt.Errorf("create http fetcher: %w", err)
		}
		a.closers = append(a.closers, func() error {
			f.CloseIdleConnections()
			return nil
		})
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fetch backend: %s", a.cfg.Fetch.Backend)
	}
}

func (a *App) notify(ctx context.Context, summary probe.Summary, uri string) error {
	topic := a.cfg.Notify.PubSub.TopicID
	if topic == "" {
		return nil
	}
	pub, err := a.publisher(ctx)
	if err != nil {
		return err
	}
	msg := Notification{
		RunID:          summary.RunID,
		Total:          len(summary.Results),
		Succeeded:      summary.Succeeded,
		Failed:         summary.Failed,
		FailedAttempts: summary.FailedAttempts,
		OutputURI:      uri,
		StartedAt:      summary.Started,
		FinishedAt:     summary.Finished,
	}
	id, err := pub.Publish(ctx, topic, msg)
	if err != nil {
		return fmt.Errorf("publish run notification: %w", err)
	}
	a.logger.Info("run notification published", zap.String("topic", topic), zap.String("message_id", id))
	return nil
}

func (a *App) publisher(ctx context.Context) (Publisher, error) {
	if a.deps.Publisher != nil {
		return a.deps.Publisher, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.Notify.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	a.closers = append(a.closers, client.Close, func() error {
		pub.Close()
		return nil
	})
	a.deps.Publisher = pub
	return pub, nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("probing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(w) }),
	)
}
