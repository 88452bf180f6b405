package scraper

import (
	"context"
	"fmt"
	"time"

	"cryptodata/pkg/dataset"
	errs "cryptodata/pkg/errors"
	"cryptodata/pkg/logger"
	"cryptodata/pkg/ratelimit"
	"cryptodata/pkg/retry"
)

// DefaultProgressInterval reports every tenth page
const DefaultProgressInterval = 10

// Fetcher retrieves one page of trades strictly after cursor
type Fetcher interface {
	FetchPage(ctx context.Context, symbol string, cursor int64) (*dataset.Page, error)
}

// State is the engine's lifecycle state
type State int

const (
	Running State = iota
	WaitingBackoff
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case WaitingBackoff:
		return "waiting_backoff"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason says why the engine stopped
type StopReason string

const (
	ReachedLiveEdge   StopReason = "reached_live_edge"
	Canceled          StopReason = retry.ReasonCanceled
	Disconnected      StopReason = retry.ReasonDisconnected
	UnclassifiedError StopReason = retry.ReasonUnclassified
	RetriesExhausted  StopReason = retry.ReasonExhausted
)

// Complete reports whether the run caught up with the present
func (r StopReason) Complete() bool {
	return r == ReachedLiveEdge
}

// Progress is emitted every ProgressInterval successful pages
type Progress struct {
	Page   int
	Last   dataset.RawTrade
	Cursor int64
	Trades int
}

// Result is the outcome of one engine run. Fatal errors end the run but are
// carried in Err: the trades and cursor collected up to that point stay valid.
type Result struct {
	Trades        []dataset.RawTrade
	Schema        dataset.Schema
	Cursor        int64
	StoppedReason StopReason
	Pages         int
	Fetches       int
	Retries       int
	Err           error
}

// Engine pages through the trade history of a symbol
type Engine struct {
	Fetcher Fetcher
	Symbol  string
	// Schema is reported when no page is fetched
	Schema  dataset.Schema
	Policy  *retry.Policy
	Limiter ratelimit.Limiter

	// ProgressInterval of 0 disables progress reports
	ProgressInterval int
	OnProgress       func(Progress)
	OnRetry          func(retry.Decision)
	OnStateChange    func(from, to State)

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	Logger logger.Logger
}

// NewEngine creates an engine with the default policy, no request pacing and
// progress every DefaultProgressInterval pages.
func NewEngine(fetcher Fetcher, symbol string) *Engine {
	return &Engine{
		Fetcher:          fetcher,
		Symbol:           symbol,
		Policy:           retry.DefaultPolicy(),
		Limiter:          ratelimit.Unlimited{},
		ProgressInterval: DefaultProgressInterval,
		Now:              time.Now,
		Sleep:            retry.Wait,
		Logger:           logger.GetLogger(),
	}
}

func (e *Engine) withDefaults() {
	if e.Policy == nil {
		e.Policy = retry.DefaultPolicy()
	}
	if e.Limiter == nil {
		e.Limiter = ratelimit.Unlimited{}
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Sleep == nil {
		e.Sleep = retry.Wait
	}
	if e.Logger == nil {
		e.Logger = logger.NewNopLogger()
	}
}

// Run collects trades from initialCursor until the cursor reaches the
// current time, the context is cancelled or a fatal error occurs. The wall
// clock is sampled again before every fetch. A fetch that has started is
// never interrupted; cancellation is observed between fetches and while
// waiting out a backoff delay.
func (e *Engine) Run(ctx context.Context, initialCursor int64) *Result {
	e.withDefaults()

	log := e.Logger.WithField("pair", e.Symbol)
	res := &Result{
		Schema: e.Schema,
		Cursor: initialCursor,
	}

	state := Running
	transition := func(to State) {
		if e.OnStateChange != nil {
			e.OnStateChange(state, to)
		}
		state = to
	}
	stop := func(reason StopReason, err error) *Result {
		res.StoppedReason = reason
		res.Err = err
		transition(Stopped)
		logger.LogStop(log, string(reason), res.Pages, len(res.Trades), err)
		return res
	}

	log.InfoWithFields("Collection started", map[string]interface{}{
		"cursor": res.Cursor,
		"from":   dataset.CursorToTime(res.Cursor),
	})

	for {
		if res.Cursor >= e.Now().UnixNano() {
			return stop(ReachedLiveEdge, nil)
		}
		if err := ctx.Err(); err != nil {
			return stop(Canceled, err)
		}
		if err := e.Limiter.Wait(ctx); err != nil {
			return stop(Canceled, err)
		}

		res.Fetches++
		page, err := e.Fetcher.FetchPage(context.WithoutCancel(ctx), e.Symbol, res.Cursor)
		if err != nil {
			decision := e.Policy.Next(err)
			if !decision.Retry {
				return stop(StopReason(decision.Reason), err)
			}

			res.Retries++
			logger.LogRetry(log, err, string(decision.Type), decision.Attempt, decision.Delay)
			if e.OnRetry != nil {
				e.OnRetry(decision)
			}

			transition(WaitingBackoff)
			if err := e.Sleep(ctx, decision.Delay); err != nil {
				return stop(Canceled, err)
			}
			transition(Running)
			continue
		}

		e.Policy.Reset()

		if page.Last <= res.Cursor {
			if len(page.Trades) == 0 {
				// nothing newer than the cursor exists yet
				return stop(ReachedLiveEdge, nil)
			}
			return stop(UnclassifiedError, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("page of %d trades did not advance the cursor past %d (last %d)", len(page.Trades), res.Cursor, page.Last),
			})
		}

		pageIndex := res.Pages
		res.Pages++
		res.Schema = page.Schema
		res.Trades = append(res.Trades, page.Trades...)
		res.Cursor = page.Last

		logger.LogPage(log, e.Symbol, pageIndex, len(page.Trades), dataset.CursorToTime(res.Cursor))
		e.reportProgress(pageIndex, res)
	}
}

func (e *Engine) reportProgress(pageIndex int, res *Result) {
	if e.OnProgress == nil || e.ProgressInterval <= 0 || len(res.Trades) == 0 {
		return
	}
	if pageIndex%e.ProgressInterval != 0 {
		return
	}
	e.OnProgress(Progress{
		Page:   pageIndex,
		Last:   res.Trades[len(res.Trades)-1],
		Cursor: res.Cursor,
		Trades: len(res.Trades),
	})
}
