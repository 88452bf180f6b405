package kraken

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cryptodata/pkg/dataset"
)

// tradesResponse is the envelope of every Kraken public response
type tradesResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// lastKey holds the pagination marker inside the result object
const lastKey = "last"

// pairKey returns the result key holding the trade rows. Kraken may answer
// with a canonical pair name that differs from the one requested.
func (r *tradesResponse) pairKey(requested string) (string, bool) {
	if _, ok := r.Result[requested]; ok {
		return requested, true
	}
	for k := range r.Result {
		if k != lastKey {
			return k, true
		}
	}
	return "", false
}

// parseLast decodes the trailing marker, sent either as a string or a number.
func parseLast(raw json.RawMessage) (int64, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return 0, fmt.Errorf("unexpected type %T for %q", v, lastKey)
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseTrades decodes the trade rows:
//
//	[price, volume, time, side, order_type, misc, trade_id]
//
// Only the first three columns are required. The returned schema lists the
// optional fields the rows carry; every row must carry the same ones.
func parseTrades(raw json.RawMessage) ([]dataset.RawTrade, dataset.Schema, error) {
	var rows [][]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, dataset.Schema{}, err
	}

	var schema dataset.Schema
	trades := make([]dataset.RawTrade, 0, len(rows))
	for i, row := range rows {
		t, err := parseRow(row)
		if err != nil {
			return nil, dataset.Schema{}, fmt.Errorf("trade %d: %w", i, err)
		}
		if i == 0 {
			schema = t.Fields()
		} else if t.Fields() != schema {
			return nil, dataset.Schema{}, fmt.Errorf("trade %d carries %s, earlier trades carry %s", i, t.Fields(), schema)
		}
		trades = append(trades, t)
	}
	return trades, schema, nil
}

func parseRow(row []interface{}) (dataset.RawTrade, error) {
	var t dataset.RawTrade
	if len(row) < 3 {
		return t, fmt.Errorf("expected at least 3 fields, got %d", len(row))
	}

	var err error
	if t.Price, err = toDecimal(row[0]); err != nil {
		return t, fmt.Errorf("price: %w", err)
	}
	if t.Volume, err = toDecimal(row[1]); err != nil {
		return t, fmt.Errorf("volume: %w", err)
	}
	if t.Time, err = toDecimal(row[2]); err != nil {
		return t, fmt.Errorf("time: %w", err)
	}
	if !dataset.SecondsInRange(t.Time) {
		return t, fmt.Errorf("time %s is out of range", t.Time)
	}

	if len(row) > 3 {
		if s, ok := row[3].(string); ok && s != "" {
			side, err := dataset.ParseSide(s)
			if err != nil {
				return t, err
			}
			t.Side = &side
		}
	}
	if len(row) > 4 {
		if s, ok := row[4].(string); ok && s != "" {
			ot, err := dataset.ParseOrderType(s)
			if err != nil {
				return t, err
			}
			t.OrderType = &ot
		}
	}

	return t, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case json.Number:
		return decimal.NewFromString(t.String())
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected type %T", v)
	}
}
