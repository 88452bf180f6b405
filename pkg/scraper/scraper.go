package scraper

import (
	"context"
	"fmt"
	"time"

	"cryptodata/pkg/checkpoint"
	"cryptodata/pkg/config"
	"cryptodata/pkg/dataset"
	"cryptodata/pkg/kraken"
	"cryptodata/pkg/logger"
	"cryptodata/pkg/ratelimit"
	"cryptodata/pkg/retry"
	"cryptodata/pkg/storage"
)

// Reporter receives user-facing status updates during a run
type Reporter interface {
	Loading(path string)
	Fetching(from time.Time)
	Progress(p Progress)
	Retrying(d retry.Decision)
	Finished(format string)
}

// NopReporter discards all status updates
type NopReporter struct{}

func (NopReporter) Loading(string)          {}
func (NopReporter) Fetching(time.Time)      {}
func (NopReporter) Progress(Progress)       {}
func (NopReporter) Retrying(retry.Decision) {}
func (NopReporter) Finished(string)         {}

// Report summarises a completed run
type Report struct {
	Input   string
	State   *checkpoint.State
	Result  *Result
	Dataset *dataset.Dataset
	// Sinks lists the sinks that were written successfully
	Sinks []string
	// MirrorErrors holds failures of secondary sinks
	MirrorErrors []error
}

// Partial reports whether the run stopped before reaching the present
func (r *Report) Partial() bool {
	return r.Result != nil && !r.Result.StoppedReason.Complete()
}

// Fetched returns the number of trades collected in this run
func (r *Report) Fetched() int {
	if r.Result == nil {
		return 0
	}
	return len(r.Result.Trades)
}

// Scraper orchestrates a collection run
type Scraper struct {
	config   *config.Config
	fetcher  Fetcher
	loader   *checkpoint.Loader
	sinks    []storage.Sink
	reporter Reporter
	logger   logger.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	closers  []func() error
}

// Option customises a Scraper
type Option func(*Scraper)

// WithFetcher replaces the Kraken client
func WithFetcher(f Fetcher) Option {
	return func(s *Scraper) { s.fetcher = f }
}

// WithReporter sets the status reporter
func WithReporter(r Reporter) Option {
	return func(s *Scraper) { s.reporter = r }
}

// WithSinks replaces the default sinks. The first sink is the primary one.
func WithSinks(sinks ...storage.Sink) Option {
	return func(s *Scraper) { s.sinks = sinks }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// WithClock sets the wall clock used to detect the live edge
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// WithSleeper sets the function used to wait out backoff delays
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Scraper) { s.sleep = sleep }
}

// New creates a Scraper for the configuration. Unless replaced through
// options it fetches from Kraken, writes CSV to the output path and, when a
// database DSN is configured, mirrors the result into Postgres.
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	s := &Scraper{
		config:   cfg,
		reporter: NopReporter{},
		logger:   logger.GetLogger(),
		now:      time.Now,
		sleep:    retry.Wait,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.loader = checkpoint.NewLoader(s.logger)

	if s.fetcher == nil {
		s.fetcher = kraken.NewClient(cfg.Kraken, s.schema(), s.logger)
	}

	if s.sinks == nil {
		s.sinks = []storage.Sink{storage.NewCSVStore(cfg.OutputPath(), s.logger)}
		if cfg.Database.DSN != "" {
			pg, err := storage.NewPostgresStore(cfg.Database.DSN, cfg.Database.BatchSize, s.logger)
			if err != nil {
				return nil, fmt.Errorf("failed to open database mirror: %w", err)
			}
			s.sinks = append(s.sinks, pg)
			s.closers = append(s.closers, pg.Close)
		}
	}

	return s, nil
}

// Close releases resources held by the sinks
func (s *Scraper) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scraper) schema() dataset.Schema {
	if s.config.Collection.WithSide {
		return dataset.Full
	}
	return dataset.Schema{}
}

// InputPath returns the checkpoint to resume from, if any
func (s *Scraper) InputPath() string {
	if s.config.Collection.InputFile != "" {
		return s.config.Collection.InputFile
	}
	if s.config.Collection.Resume && checkpoint.Exists(s.config.OutputPath()) {
		return s.config.OutputPath()
	}
	return ""
}

func (s *Scraper) engine() *Engine {
	cfg := s.config
	e := NewEngine(s.fetcher, cfg.Collection.Pair)
	e.Schema = s.schema()
	e.Policy = retry.NewPolicy(cfg.Retry)
	e.Limiter = ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	e.ProgressInterval = cfg.Progress.Interval
	e.OnProgress = s.reporter.Progress
	e.OnRetry = s.reporter.Retrying
	e.Now = s.now
	e.Sleep = s.sleep
	e.Logger = s.logger
	return e
}

// Run loads the checkpoint, collects new trades, merges them after the
// checkpoint records and writes the result to every sink.
//
// A malformed checkpoint fails before any request is made. A schema mismatch
// fails after fetching; the returned Report still carries the fetched trades.
// Nothing is written in either case. An early stop is not an error: the
// partial dataset is written and Report.Partial is true.
func (s *Scraper) Run(ctx context.Context) (*Report, error) {
	pair := s.config.Collection.Pair
	report := &Report{Input: s.InputPath()}

	if report.Input != "" {
		s.reporter.Loading(report.Input)
	}
	state, err := s.loader.LoadFile(report.Input, pair)
	if err != nil {
		return report, err
	}
	report.State = state

	s.reporter.Fetching(dataset.CursorToTime(state.Cursor))
	report.Result = s.engine().Run(ctx, state.Cursor)

	merged, err := dataset.Merge(state.Prefix, report.Result.Schema, report.Result.Trades)
	if err != nil {
		s.logger.WithError(err).ErrorWithFields("Cannot merge fetched trades", map[string]interface{}{
			"pair":    pair,
			"fetched": report.Fetched(),
		})
		return report, err
	}
	report.Dataset = merged

	if ok, idx := dataset.IsOrdered(merged.Records); !ok {
		s.logger.WarnWithFields("Dataset is not in time order", map[string]interface{}{
			"pair":  pair,
			"index": idx,
		})
	}

	s.reporter.Finished(s.config.Collection.FileFormat)

	// Writing must survive the cancellation that may have ended the run.
	writeCtx := context.WithoutCancel(ctx)
	for i, sink := range s.sinks {
		if err := sink.Write(writeCtx, merged); err != nil {
			if i == 0 {
				return report, fmt.Errorf("failed to write %s: %w", sink.Name(), err)
			}
			s.logger.WithError(err).WarnWithFields("Mirror write failed", map[string]interface{}{
				"sink": sink.Name(),
			})
			report.MirrorErrors = append(report.MirrorErrors, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		report.Sinks = append(report.Sinks, sink.Name())
	}

	s.logger.InfoWithFields("Run complete", map[string]interface{}{
		"pair":     pair,
		"prefix":   state.Prefix.Len(),
		"fetched":  report.Fetched(),
		"total":    merged.Len(),
		"reason":   string(report.Result.StoppedReason),
		"complete": !report.Partial(),
	})

	return report, nil
}
