package kraken

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodata/pkg/dataset"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseLast(t *testing.T) {
	n, err := parseLast(json.RawMessage(`"1617014587100000000"`))
	require.NoError(t, err)
	assert.Equal(t, int64(1617014587100000000), n)

	n, err = parseLast(json.RawMessage(`1617014587100000000`))
	require.NoError(t, err)
	assert.Equal(t, int64(1617014587100000000), n)

	_, err = parseLast(json.RawMessage(`null`))
	assert.Error(t, err)
}

func TestParseTradesOptionalColumns(t *testing.T) {
	trades, schema, err := parseTrades(json.RawMessage(`[["1.5","2",10],["1.6","3",11,"","",""]]`))
	require.NoError(t, err)
	assert.Equal(t, dataset.Schema{}, schema)
	require.Len(t, trades, 2)
	assert.Nil(t, trades[0].Side)
	assert.Nil(t, trades[1].OrderType)
	assert.True(t, trades[1].Time.Equal(dec("11")))
}

func TestParseTradesSchema(t *testing.T) {
	_, schema, err := parseTrades(json.RawMessage(`[["1","2",3,"b","m",""],["1","2",4,"s","l",""]]`))
	require.NoError(t, err)
	assert.Equal(t, dataset.Full, schema)

	_, schema, err = parseTrades(json.RawMessage(`[["1","2",3,"b"]]`))
	require.NoError(t, err)
	assert.Equal(t, dataset.Schema{Side: true}, schema)

	_, schema, err = parseTrades(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Equal(t, dataset.Schema{}, schema)
}

func TestParseTradesRejectsMixedRows(t *testing.T) {
	_, _, err := parseTrades(json.RawMessage(`[["1","2",3,"b","m",""],["1","2",4,"","",""]]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trade 1 carries price,volume")
}

func TestParseTradesRejectsBadRows(t *testing.T) {
	for _, body := range []string{
		`[["1","2"]]`,
		`[["1","2",3,"x","m"]]`,
		`[["1","2",3,"b","q"]]`,
		`[["1",true,3]]`,
		`[["1","2",99999999999]]`,
		`{"not":"rows"}`,
	} {
		_, _, err := parseTrades(json.RawMessage(body))
		assert.Error(t, err, body)
	}
}

func TestPairKey(t *testing.T) {
	r := tradesResponse{Result: map[string]json.RawMessage{
		"last":     json.RawMessage(`"1"`),
		"XXBTZEUR": json.RawMessage(`[]`),
	}}

	k, ok := r.pairKey("XBTEUR")
	require.True(t, ok)
	assert.Equal(t, "XXBTZEUR", k)

	k, ok = r.pairKey("XXBTZEUR")
	require.True(t, ok)
	assert.Equal(t, "XXBTZEUR", k)

	_, ok = (&tradesResponse{Result: map[string]json.RawMessage{"last": nil}}).pairKey("X")
	assert.False(t, ok)
}

func TestAPIError(t *testing.T) {
	assert.Equal(t, "missing_result", string(apiError([]string{"WGeneral:Deprecated"}).Type))
	assert.Equal(t, "invalid_request", string(apiError([]string{"EGeneral:Invalid arguments"}).Type))
	assert.Equal(t, "server_error", string(apiError([]string{"EGeneral:Internal error"}).Type))

	e := apiError([]string{"EService:Busy", "EAPI:Rate limit exceeded"})
	assert.Equal(t, "EService:Busy; EAPI:Rate limit exceeded", e.Message)
}
