package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cryptodata/pkg/dataset"
	"cryptodata/pkg/retry"
	"cryptodata/pkg/scraper"
)

func TestConsoleStatusLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWithColor(&buf, false)

	c.Loading("XETHZEUR")
	c.Fetching(time.Time{})
	c.Progress(scraper.Progress{
		Page:   10,
		Last:   dataset.RawTrade{Time: decimal.RequireFromString("1617014586.6679")},
		Trades: 11000,
	})
	c.Retrying(retry.Decision{Retry: true, Delay: 10 * time.Second, Attempt: 1})
	c.Finished("csv")

	out := buf.String()
	assert.Contains(t, out, "Loading data from XETHZEUR\n")
	assert.Contains(t, out, "Fetching your data...\n")
	assert.NotContains(t, out, "continuing after")
	assert.Contains(t, out, "2021-03-29 10:43:06 (11000 trades)\n")
	assert.Contains(t, out, "Reached request maximum. Sleeping for 10 seconds...\n")
	assert.Contains(t, out, "Finished retrieving all the data. Putting everything together in a csv file\n")
	assert.NotContains(t, out, "\033[")
}

func TestConsoleFetchingResumed(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleWithColor(&buf, false).Fetching(time.Unix(100, 0))
	assert.Contains(t, buf.String(), "continuing after 1970-01-01 00:01:40")
}

func TestConsoleColor(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWithColor(&buf, true)
	c.PrintSuccess("done")
	assert.Equal(t, "\033[32mdone\033[0m\n", buf.String())

	// a buffer is never a terminal
	assert.False(t, NewConsole(&buf).color)
}

func TestPrintReport(t *testing.T) {
	d := dataset.New("XETHZEUR", dataset.Schema{})
	d.Records = []dataset.Record{{Timestamp: time.Unix(150, 0).UTC()}}

	t.Run("complete", func(t *testing.T) {
		var buf bytes.Buffer
		NewConsoleWithColor(&buf, false).PrintReport(&scraper.Report{
			Dataset: d,
			Result:  &scraper.Result{StoppedReason: scraper.ReachedLiveEdge, Trades: make([]dataset.RawTrade, 1)},
			Sinks:   []string{"csv:XETHZEUR"},
		})
		out := buf.String()
		assert.Contains(t, out, "Records: 1 (1 new)")
		assert.Contains(t, out, "Last trade: 1970-01-01 00:02:30")
		assert.Contains(t, out, "Saved to: csv:XETHZEUR")
		assert.Contains(t, out, "Dataset is up to date")
	})

	t.Run("partial", func(t *testing.T) {
		var buf bytes.Buffer
		NewConsoleWithColor(&buf, false).PrintReport(&scraper.Report{
			Dataset:      d,
			Result:       &scraper.Result{StoppedReason: scraper.Disconnected, Err: errors.New("EOF")},
			MirrorErrors: []error{errors.New("postgres: timeout")},
		})
		out := buf.String()
		assert.Contains(t, out, "Collection stopped before reaching the present: disconnected")
		assert.Contains(t, out, "Cause: EOF")
		assert.Contains(t, out, "Mirror not updated: postgres: timeout")
		assert.Contains(t, out, "--resume")
		assert.NotContains(t, out, "up to date")
	})
}

func TestFormatDelay(t *testing.T) {
	assert.Equal(t, "10 seconds", FormatDelay(10*time.Second))
	assert.Equal(t, "1 second", FormatDelay(time.Second))
	assert.Equal(t, "1.5s", FormatDelay(1500*time.Millisecond))
}
