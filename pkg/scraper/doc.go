// Package scraper collects the trade history of one pair and resumes where
// an earlier run stopped.
//
// Architecture:
//
// The Engine walks the paginated trade endpoint. Starting from a cursor it
// requests one page at a time, appends the trades and continues from the
// page's trailing marker until the cursor reaches the present. Failed fetches
// go through the retry policy: transient failures are retried at the same
// cursor after a delay, anything else stops the run while keeping every
// trade collected so far.
//
// The Scraper wires the engine to its collaborators:
//
//	checkpoint -> Engine -> dataset.Merge -> storage sinks
//
// Usage:
//
//	s, err := scraper.New(cfg, scraper.WithReporter(ui.NewConsole(os.Stdout, true)))
//	if err != nil {
//		return err
//	}
//	report, err := s.Run(ctx)
//
// Engine state transitions can be observed with Engine.OnStateChange:
//
//	Running -> WaitingBackoff -> Running -> ... -> Stopped
package scraper
