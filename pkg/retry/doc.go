// Package retry decides what happens after a page fetch fails.
//
// Classify sorts an error into retryable or fatal. Policy turns a retryable
// error into a delay using a cenkalti/backoff strategy, and reports when the
// consecutive retry allowance is spent. Wait sleeps for a delay unless the
// context is cancelled first.
//
//	policy := retry.NewPolicy(cfg.Retry)
//	for {
//		page, err := client.FetchPage(ctx, pair, cursor)
//		if err == nil {
//			policy.Reset()
//			continue
//		}
//		d := policy.Next(err)
//		if !d.Retry {
//			return d.Reason
//		}
//		if err := retry.Wait(ctx, d.Delay); err != nil {
//			return retry.ReasonCanceled
//		}
//	}
package retry
