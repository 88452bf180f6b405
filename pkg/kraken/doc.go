// Package kraken implements the paginated trade-history fetch against the
// Kraken public REST API.
//
// A single call to FetchPage issues one GET /0/public/Trades request and
// turns the response into a dataset.Page. Every failure is returned as an
// *errors.Error whose Type lets the retry package decide whether the page
// should be requested again:
//
//   - missing_result: the response carried no result (Kraken rate limiting
//     or service unavailability is reported this way)
//   - rate_limit / server_error: HTTP 429 and 5xx
//   - parsing: the payload could not be decoded
//   - timeout: the request timed out without the connection dropping
//   - network: the connection was lost or refused
//   - invalid_request: Kraken rejected the query, e.g. an unknown pair
//
// Timestamps are decoded as exact decimals so nanosecond cursors survive the
// round trip.
package kraken
