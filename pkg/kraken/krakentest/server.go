// Package krakentest provides an in-process stand-in for the Kraken public
// trades endpoint.
package krakentest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"

	"cryptodata/pkg/dataset"
	"cryptodata/pkg/kraken"
)

// Failure is an injected failing response
type Failure int

const (
	// RateLimited answers with an API error and no result
	RateLimited Failure = iota
	// Malformed answers with a truncated JSON body
	Malformed
	// BadGateway answers with HTTP 502
	BadGateway
	// UnknownPair answers with a non-retryable query error
	UnknownPair
)

// Server serves a fixed trade history the way Kraken does: rows strictly
// after the since parameter, at most PageSize per response, with the
// nanosecond timestamp of the last row as the next cursor.
type Server struct {
	server   *httptest.Server
	pair     string
	trades   []dataset.RawTrade
	pageSize int

	mu       sync.Mutex
	failures []Failure
	sinces   []int64

	requestCount  int32
	rateLimitHits int32
}

// NewServer starts a server answering for pair with the given history,
// which must be in time order.
func NewServer(pair string, trades []dataset.RawTrade, pageSize int) *Server {
	s := &Server{
		pair:     pair,
		trades:   trades,
		pageSize: pageSize,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(kraken.TradesEndpoint, s.handleTrades)
	s.server = httptest.NewServer(mux)
	return s
}

// FailNext queues failures answered before any further successful response
func (s *Server) FailNext(failures ...Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failures...)
}

func (s *Server) nextFailure() (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return 0, false
	}
	f := s.failures[0]
	s.failures = s.failures[1:]
	return f, true
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requestCount, 1)

	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		s.sendAPIError(w, "EGeneral:Invalid arguments")
		return
	}
	s.mu.Lock()
	s.sinces = append(s.sinces, since)
	s.mu.Unlock()

	if f, ok := s.nextFailure(); ok {
		s.sendFailure(w, f)
		return
	}

	if r.URL.Query().Get("pair") != s.pair {
		s.sendAPIError(w, "EQuery:Unknown asset pair")
		return
	}

	rows := make([][]interface{}, 0, s.pageSize)
	last := since
	for _, t := range s.trades {
		ns := dataset.TimeToCursor(dataset.SecondsToTime(t.Time))
		if ns <= since {
			continue
		}
		rows = append(rows, row(t, len(rows)))
		last = ns
		if len(rows) == s.pageSize {
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": []string{},
		"result": map[string]interface{}{
			s.pair: rows,
			"last":  strconv.FormatInt(last, 10),
		},
	})
}

func row(t dataset.RawTrade, id int) []interface{} {
	side, orderType := "b", "l"
	if t.Side != nil {
		side = string(*t.Side)
	}
	if t.OrderType != nil {
		orderType = string(*t.OrderType)
	}
	return []interface{}{
		t.Price.String(),
		t.Volume.String(),
		json.Number(t.Time.String()),
		side,
		orderType,
		"",
		id,
	}
}

func (s *Server) sendFailure(w http.ResponseWriter, f Failure) {
	switch f {
	case RateLimited:
		atomic.AddInt32(&s.rateLimitHits, 1)
		s.sendAPIError(w, "EAPI:Rate limit exceeded")
	case Malformed:
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"error":[],"result":{"`+s.pair+`":[["1795.1`)
	case BadGateway:
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "Bad Gateway")
	case UnknownPair:
		s.sendAPIError(w, "EQuery:Unknown asset pair")
	}
}

func (s *Server) sendAPIError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": []string{message},
	})
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.server.URL
}

// RequestCount returns the total number of trade requests
func (s *Server) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// RateLimitHits returns the number of rate-limited responses
func (s *Server) RateLimitHits() int {
	return int(atomic.LoadInt32(&s.rateLimitHits))
}

// Sinces returns the since parameter of every request, in order
func (s *Server) Sinces() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.sinces...)
}

// Close shuts down the server
func (s *Server) Close() {
	s.server.Close()
}
