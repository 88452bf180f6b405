package dataset

import (
	"fmt"
	"time"

	errs "cryptodata/pkg/errors"
)

// Merge concatenates the checkpoint prefix with newly fetched trades.
//
// Each raw trade timestamp is converted to the prefix's temporal
// representation. The result is prefix then new records, in that order: the
// fetched half already strictly follows the prefix because the cursor starts
// at the prefix's last timestamp, so nothing is re-sorted here.
//
// fetched is the schema reported by the source. When the prefix is non-empty,
// trades were fetched, and the two schemas disagree, Merge fails with a
// *errors.SchemaMismatchError and leaves raw untouched. It fails the same way
// when a fetched trade lacks a field fetched claims.
func Merge(prefix *Dataset, fetched Schema, raw []RawTrade) (*Dataset, error) {
	out := &Dataset{
		Symbol: prefix.Symbol,
		Schema: prefix.Schema,
		Index:  prefix.Index,
	}

	if len(raw) > 0 {
		if prefix.Len() > 0 && prefix.Schema != fetched {
			return nil, &errs.SchemaMismatchError{
				Checkpoint: prefix.Schema.String(),
				Fetched:    fetched.String(),
			}
		}
		for _, t := range raw {
			if carried := t.Fields(); (fetched.Side && !carried.Side) || (fetched.OrderType && !carried.OrderType) {
				return nil, &errs.SchemaMismatchError{
					Checkpoint: prefix.Schema.String(),
					Fetched:    fmt.Sprintf("%s, but a trade at %s carries %s", fetched, SecondsToTime(t.Time).Format(time.RFC3339Nano), carried),
				}
			}
		}
		out.Schema = fetched
	}

	out.Records = make([]Record, 0, prefix.Len()+len(raw))
	out.Records = append(out.Records, prefix.Records...)
	for _, t := range raw {
		out.Records = append(out.Records, t.ToRecord(out.Schema))
	}

	return out, nil
}

// ToRecord converts a raw trade into a Record restricted to schema.
func (t RawTrade) ToRecord(schema Schema) Record {
	r := Record{
		Timestamp: SecondsToTime(t.Time),
		Price:     t.Price,
		Volume:    t.Volume,
	}
	if schema.Side {
		r.Side = t.Side
	}
	if schema.OrderType {
		r.OrderType = t.OrderType
	}
	return r
}
