// Package ratelimit paces requests to the market-data endpoint.
//
// All limiters implement the Limiter interface:
//
//	type Limiter interface {
//		Wait(ctx context.Context) error
//	}
//
// TokenBucket is backed by golang.org/x/time/rate. Unlimited never blocks and
// is used when pacing is disabled (requests_per_second: 0).
package ratelimit
