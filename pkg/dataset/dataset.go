package dataset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the aggressor side of a trade
type Side string

const (
	Buy  Side = "b"
	Sell Side = "s"
)

// ParseSide converts the wire/column value into a Side
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy, Sell:
		return Side(s), nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// OrderType is the type of order that triggered a trade
type OrderType string

const (
	Market OrderType = "m"
	Limit  OrderType = "l"
)

// ParseOrderType converts the wire/column value into an OrderType
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case Market, Limit:
		return OrderType(s), nil
	}
	return "", fmt.Errorf("invalid order type %q", s)
}

// Schema describes which optional trade fields a dataset carries.
type Schema struct {
	Side      bool `json:"side" yaml:"side"`
	OrderType bool `json:"order_type" yaml:"order_type"`
}

func (s Schema) String() string {
	switch {
	case s.Side && s.OrderType:
		return "price,volume,side,order_type"
	case s.Side:
		return "price,volume,side"
	case s.OrderType:
		return "price,volume,order_type"
	default:
		return "price,volume"
	}
}

// Full is the schema of the side/order-type variant.
var Full = Schema{Side: true, OrderType: true}

// Record is one observed trade with its timestamp in the persisted representation.
type Record struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Side      *Side
	OrderType *OrderType
}

// RawTrade is a trade as returned by the source, with its timestamp still in
// fractional epoch seconds.
type RawTrade struct {
	Time      decimal.Decimal
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Side      *Side
	OrderType *OrderType
}

// Fields reports which optional fields the trade carries.
func (t RawTrade) Fields() Schema {
	return Schema{Side: t.Side != nil, OrderType: t.OrderType != nil}
}

// Page is one response of the paginated trade endpoint.
type Page struct {
	Trades []RawTrade
	// Last is the trailing marker: the cursor for the next request.
	Last   int64
	Schema Schema
}

// IndexFormat is the representation of a persisted dataset's temporal index.
type IndexFormat int

const (
	IndexTextual IndexFormat = iota
	IndexEpochSeconds
)

func (f IndexFormat) String() string {
	if f == IndexEpochSeconds {
		return "epoch_seconds"
	}
	return "textual"
}

// Dataset is an ordered sequence of trade records for a single symbol.
type Dataset struct {
	Symbol  string
	Schema  Schema
	Index   IndexFormat
	Records []Record
}

// New returns an empty dataset for symbol with a textual index.
func New(symbol string, schema Schema) *Dataset {
	return &Dataset{
		Symbol:  symbol,
		Schema:  schema,
		Index:   IndexTextual,
		Records: []Record{},
	}
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Last returns the most recent record, or false when the dataset is empty.
func (d *Dataset) Last() (Record, bool) {
	if len(d.Records) == 0 {
		return Record{}, false
	}
	return d.Records[len(d.Records)-1], true
}

// First returns the oldest record, or false when the dataset is empty.
func (d *Dataset) First() (Record, bool) {
	if len(d.Records) == 0 {
		return Record{}, false
	}
	return d.Records[0], true
}

// PriceColumn returns the name of the price column, "<symbol>_price".
func (d *Dataset) PriceColumn() string {
	return PriceColumn(d.Symbol)
}

// PriceColumn returns the price column name for symbol.
func PriceColumn(symbol string) string {
	return symbol + "_price"
}

// IsOrdered reports whether timestamps are non-decreasing. It returns the
// index of the first out-of-order record, or -1.
func IsOrdered(records []Record) (bool, int) {
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			return false, i
		}
	}
	return true, -1
}
