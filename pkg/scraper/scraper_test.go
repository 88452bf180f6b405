package scraper

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodata/pkg/config"
	"cryptodata/pkg/dataset"
	errs "cryptodata/pkg/errors"
	"cryptodata/pkg/logger"
	"cryptodata/pkg/retry"
	"cryptodata/pkg/storage"
)

type recordingReporter struct {
	loading  []string
	fetching []time.Time
	progress []Progress
	retries  []retry.Decision
	finished []string
}

func (r *recordingReporter) Loading(path string)       { r.loading = append(r.loading, path) }
func (r *recordingReporter) Fetching(from time.Time)   { r.fetching = append(r.fetching, from) }
func (r *recordingReporter) Progress(p Progress)       { r.progress = append(r.progress, p) }
func (r *recordingReporter) Retrying(d retry.Decision) { r.retries = append(r.retries, d) }
func (r *recordingReporter) Finished(format string)    { r.finished = append(r.finished, format) }

type failingSink struct {
	err    error
	writes int
}

func (f *failingSink) Write(ctx context.Context, d *dataset.Dataset) error {
	f.writes++
	return f.err
}

func (f *failingSink) Name() string { return "failing" }

// cancelingFetcher cancels the run once after calls fetches
type cancelingFetcher struct {
	inner  Fetcher
	cancel context.CancelFunc
	after  int
	calls  int
}

func (c *cancelingFetcher) FetchPage(ctx context.Context, symbol string, cursor int64) (*dataset.Page, error) {
	c.calls++
	if c.calls == c.after {
		c.cancel()
	}
	return c.inner.FetchPage(ctx, symbol, cursor)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Collection.OutputFile = filepath.Join(t.TempDir(), "XETHZEUR")
	cfg.RateLimit.RequestsPerSecond = 0
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, f Fetcher, opts ...Option) *Scraper {
	t.Helper()
	sleeper := &recordingSleeper{}
	base := []Option{
		WithFetcher(f),
		WithLogger(logger.NewNopLogger()),
		WithClock(fixedClock(1_000_000)),
		WithSleeper(sleeper.Sleep),
		WithSinks(storage.NewCSVStore(cfg.OutputPath(), logger.NewNopLogger())),
	}
	s, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readDataset(t *testing.T, path string) *dataset.Dataset {
	t.Helper()
	d, err := storage.NewCSVStore(path, logger.NewNopLogger()).Read("XETHZEUR")
	require.NoError(t, err)
	return d
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collection.InputFile = filepath.Join(t.TempDir(), "checkpoint")
	writeFile(t, cfg.Collection.InputFile, ",XETHZEUR_price,volume\n100,10,1\n")

	f := &scriptedFetcher{steps: []step{
		{page: &dataset.Page{Trades: []dataset.RawTrade{trade("150", "11", "2")}, Last: 150_000_000_000}},
		{page: &dataset.Page{Last: 200_000_000_000}},
	}}
	rep := &recordingReporter{}
	s := newTestScraper(t, cfg, f, WithReporter(rep), WithClock(fixedClock(200)))

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReachedLiveEdge, report.Result.StoppedReason)
	assert.False(t, report.Partial())
	assert.Equal(t, int64(100_000_000_000), f.cursors[0], "first request continues after the checkpoint")
	assert.Equal(t, []string{"csv:" + cfg.OutputPath()}, report.Sinks)

	assert.Equal(t, []string{cfg.Collection.InputFile}, rep.loading)
	require.Len(t, rep.fetching, 1)
	assert.True(t, rep.fetching[0].Equal(time.Unix(100, 0)))
	assert.Equal(t, []string{"csv"}, rep.finished)

	out := readDataset(t, cfg.OutputPath())
	require.Equal(t, 2, out.Len())
	assert.Equal(t, dataset.IndexEpochSeconds, out.Index)
	assert.True(t, out.Records[0].Timestamp.Equal(time.Unix(100, 0)))
	assert.True(t, out.Records[0].Price.Equal(dec("10")))
	assert.True(t, out.Records[0].Volume.Equal(dec("1")))
	assert.True(t, out.Records[1].Timestamp.Equal(time.Unix(150, 0)))
	assert.True(t, out.Records[1].Price.Equal(dec("11")))
	assert.True(t, out.Records[1].Volume.Equal(dec("2")))
}

func TestRunMalformedCheckpointWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collection.InputFile = filepath.Join(t.TempDir(), "checkpoint")
	writeFile(t, cfg.Collection.InputFile, ",XETHZEUR_price,volume\nhello,1,1\n")

	f := &scriptedFetcher{}
	report, err := newTestScraper(t, cfg, f).Run(context.Background())

	var malformed *errs.MalformedCheckpointError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, cfg.Collection.InputFile, malformed.Path)
	assert.Nil(t, report.Result)
	assert.Empty(t, f.cursors, "no request is made")
	assert.NoFileExists(t, cfg.OutputPath())
}

func TestRunSchemaMismatchKeepsFetchedTrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collection.InputFile = filepath.Join(t.TempDir(), "checkpoint")
	writeFile(t, cfg.Collection.InputFile, ",XETHZEUR_price,volume\n100,10,1\n")

	buy, limit := dataset.Buy, dataset.Limit
	f := &scriptedFetcher{steps: []step{
		{page: &dataset.Page{
			Trades: []dataset.RawTrade{{Time: dec("150"), Price: dec("11"), Volume: dec("2"), Side: &buy, OrderType: &limit}},
			Last:   150_000_000_000,
			Schema: dataset.Full,
		}},
	}}

	report, err := newTestScraper(t, cfg, f).Run(context.Background())

	var mismatch *errs.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.NotNil(t, report.Result)
	assert.Len(t, report.Result.Trades, 1)
	assert.Nil(t, report.Dataset)
	assert.NoFileExists(t, cfg.OutputPath())
}

func TestRunWritesPartialDataOnEarlyStop(t *testing.T) {
	cfg := testConfig(t)
	f := &scriptedFetcher{steps: []step{
		{page: &dataset.Page{Trades: []dataset.RawTrade{trade("150", "11", "2")}, Last: 150_000_000_000}},
		{err: io.EOF},
	}}

	report, err := newTestScraper(t, cfg, f).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Partial())
	assert.Equal(t, Disconnected, report.Result.StoppedReason)
	assert.ErrorIs(t, report.Result.Err, io.EOF)

	out := readDataset(t, cfg.OutputPath())
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, dataset.IndexTextual, out.Index)
}

func TestRunWritesAfterCancellation(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := &historyFetcher{trades: makeHistory(10), pageSize: 3}
	report, err := newTestScraper(t, cfg, &cancelingFetcher{inner: h, cancel: cancel, after: 2}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, Canceled, report.Result.StoppedReason)
	assert.Equal(t, 6, readDataset(t, cfg.OutputPath()).Len())
}

func TestRunResumeSplitMatchesSingleRun(t *testing.T) {
	history := makeHistory(40)

	single := testConfig(t)
	_, err := newTestScraper(t, single, &historyFetcher{trades: history, pageSize: 7}).Run(context.Background())
	require.NoError(t, err)

	split := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &cancelingFetcher{inner: &historyFetcher{trades: history, pageSize: 7}, cancel: cancel, after: 3}
	report, err := newTestScraper(t, split, first).Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Partial())

	split.Collection.Resume = true
	second := &historyFetcher{trades: history, pageSize: 7}
	report, err = newTestScraper(t, split, second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, split.OutputPath(), report.Input)
	assert.Equal(t, 21, report.State.Prefix.Len())
	assert.Equal(t, 19, report.Fetched())

	want, err := os.ReadFile(single.OutputPath())
	require.NoError(t, err)
	got, err := os.ReadFile(split.OutputPath())
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestRunMirrorFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	primary := storage.NewCSVStore(cfg.OutputPath(), logger.NewNopLogger())
	mirror := &failingSink{err: errors.New("connection refused")}
	f := &scriptedFetcher{steps: []step{
		{page: &dataset.Page{Trades: []dataset.RawTrade{trade("150", "11", "2")}, Last: 150_000_000_000}},
	}}

	report, err := newTestScraper(t, cfg, f, WithSinks(primary, mirror)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, mirror.writes)
	assert.Equal(t, []string{primary.Name()}, report.Sinks)
	require.Len(t, report.MirrorErrors, 1)
	assert.Contains(t, report.MirrorErrors[0].Error(), "failing")
	assert.FileExists(t, cfg.OutputPath())
}

func TestRunPrimarySinkFailure(t *testing.T) {
	cfg := testConfig(t)
	primary := &failingSink{err: errors.New("disk full")}
	secondary := &failingSink{}

	report, err := newTestScraper(t, cfg, &scriptedFetcher{}, WithSinks(primary, secondary)).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, primary.err)
	assert.NotNil(t, report.Dataset)
	assert.Equal(t, 0, secondary.writes)
}

func TestInputPath(t *testing.T) {
	cfg := testConfig(t)
	s := newTestScraper(t, cfg, &scriptedFetcher{})

	assert.Equal(t, "", s.InputPath(), "fresh start")

	cfg.Collection.Resume = true
	assert.Equal(t, "", s.InputPath(), "nothing to resume yet")

	writeFile(t, cfg.OutputPath(), ",XETHZEUR_price,volume\n")
	assert.Equal(t, cfg.OutputPath(), s.InputPath())

	cfg.Collection.InputFile = "elsewhere"
	assert.Equal(t, "elsewhere", s.InputPath(), "explicit input wins")
}

func TestNewDefaultSinks(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.sinks, 1)
	assert.Equal(t, "csv:"+cfg.OutputPath(), s.sinks[0].Name())
	assert.NotNil(t, s.fetcher)
}

func TestRunWithSideSchema(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collection.WithSide = true

	sell, market := dataset.Sell, dataset.Market
	f := &scriptedFetcher{steps: []step{
		{page: &dataset.Page{
			Trades: []dataset.RawTrade{{Time: dec("150.25"), Price: dec("11"), Volume: dec("2"), Side: &sell, OrderType: &market}},
			Last:   150_250_000_000,
			Schema: dataset.Full,
		}},
	}}

	_, err := newTestScraper(t, cfg, f).Run(context.Background())
	require.NoError(t, err)

	out := readDataset(t, cfg.OutputPath())
	assert.Equal(t, dataset.Full, out.Schema)
	require.Equal(t, 1, out.Len())
	require.NotNil(t, out.Records[0].Side)
	assert.Equal(t, dataset.Sell, *out.Records[0].Side)
	assert.Equal(t, dataset.Market, *out.Records[0].OrderType)
}
