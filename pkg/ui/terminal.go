package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"cryptodata/pkg/dataset"
	"cryptodata/pkg/retry"
	"cryptodata/pkg/scraper"
)

// Logo is printed above interactive runs
const Logo = `
   ┌─┐┬─┐┬ ┬┌─┐┌┬┐┌─┐┌┬┐┌─┐┌┬┐┌─┐
   │  ├┬┘└┬┘├─┘ │ │ │ ││├─┤ │ ├─┤
   └─┘┴└─ ┴ ┴   ┴ └─┘─┴┘┴ ┴ ┴ ┴ ┴
   kraken trade history collector
`

// TimestampLayout is used for progress lines
const TimestampLayout = "2006-01-02 15:04:05"

const (
	cyan    = "\033[36m"
	yellow  = "\033[33m"
	red     = "\033[31m"
	green   = "\033[32m"
	magenta = "\033[35m"
	dim     = "\033[2m"
	reset   = "\033[0m"
)

// Console prints human-readable status lines. It implements scraper.Reporter.
type Console struct {
	out   io.Writer
	color bool
}

var _ scraper.Reporter = (*Console)(nil)

// NewConsole writes to out, with colors when out is a terminal and NO_COLOR
// is unset.
func NewConsole(out io.Writer) *Console {
	return NewConsoleWithColor(out, isTerminal(out) && os.Getenv("NO_COLOR") == "")
}

// NewConsoleWithColor writes to out with colors forced on or off
func NewConsoleWithColor(out io.Writer, color bool) *Console {
	return &Console{out: out, color: color}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) paint(code, text string) string {
	if !c.color {
		return text
	}
	return code + text + reset
}

func (c *Console) Cyan(s string) string    { return c.paint(cyan, s) }
func (c *Console) Yellow(s string) string  { return c.paint(yellow, s) }
func (c *Console) Red(s string) string     { return c.paint(red, s) }
func (c *Console) Green(s string) string   { return c.paint(green, s) }
func (c *Console) Magenta(s string) string { return c.paint(magenta, s) }
func (c *Console) Dim(s string) string     { return c.paint(dim, s) }

// PrintLogo prints the logo
func (c *Console) PrintLogo() {
	fmt.Fprint(c.out, c.Cyan(Logo)+"\n")
}

// PrintError prints an error message in red
func (c *Console) PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(c.out, c.Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(c.out, c.Red(msg))
	}
}

// PrintSuccess prints a success message in green
func (c *Console) PrintSuccess(msg string) {
	fmt.Fprintln(c.out, c.Green(msg))
}

// PrintInfo prints a labelled value
func (c *Console) PrintInfo(label string, value string) {
	fmt.Fprintf(c.out, "%s: %s\n", c.Cyan(label), c.Yellow(value))
}

// PrintWarning prints a warning message in yellow
func (c *Console) PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(c.out, c.Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(c.out, c.Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func (c *Console) PrintHighlight(msg string) {
	fmt.Fprintln(c.out, c.Magenta(msg))
}

func (c *Console) Loading(path string) {
	fmt.Fprintf(c.out, "Loading data from %s\n\n", c.Cyan(path))
}

func (c *Console) Fetching(from time.Time) {
	fmt.Fprintln(c.out, "Fetching your data...")
	if from.UnixNano() > 0 {
		fmt.Fprintln(c.out, c.Dim("continuing after "+from.UTC().Format(TimestampLayout)))
	}
	fmt.Fprintln(c.out)
}

// Progress prints the timestamp of the newest trade collected so far
func (c *Console) Progress(p scraper.Progress) {
	ts := dataset.SecondsToTime(p.Last.Time).Format(TimestampLayout)
	fmt.Fprintf(c.out, "%s %s\n", ts, c.Dim(fmt.Sprintf("(%d trades)", p.Trades)))
}

func (c *Console) Retrying(d retry.Decision) {
	fmt.Fprintln(c.out, c.Yellow(fmt.Sprintf("Reached request maximum. Sleeping for %s...", FormatDelay(d.Delay))))
}

func (c *Console) Finished(format string) {
	fmt.Fprintf(c.out, "\nFinished retrieving all the data. Putting everything together in a %s file\n", format)
}

// PrintReport prints the outcome of a run
func (c *Console) PrintReport(r *scraper.Report) {
	if r.Dataset != nil {
		c.PrintInfo("Records", fmt.Sprintf("%d (%d new)", r.Dataset.Len(), r.Fetched()))
		if last, ok := r.Dataset.Last(); ok {
			c.PrintInfo("Last trade", last.Timestamp.Format(TimestampLayout))
		}
	}
	if len(r.Sinks) > 0 {
		c.PrintInfo("Saved to", strings.Join(r.Sinks, ", "))
	}
	for _, err := range r.MirrorErrors {
		c.PrintWarning("Mirror not updated", err)
	}
	if r.Result == nil {
		return
	}
	if r.Partial() {
		c.PrintWarning("Collection stopped before reaching the present", r.Result.StoppedReason)
		if r.Result.Err != nil {
			c.PrintWarning("Cause", r.Result.Err)
		}
		c.PrintHighlight("Run again with --resume to continue where this run stopped")
		return
	}
	c.PrintSuccess("Dataset is up to date")
}

// FormatDelay renders whole-second delays as "N seconds"
func FormatDelay(d time.Duration) string {
	if d%time.Second == 0 {
		n := int(d / time.Second)
		if n == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", n)
	}
	return d.String()
}
