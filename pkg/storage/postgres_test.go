package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodata/pkg/dataset"
)

func TestToTradeRecord(t *testing.T) {
	side := dataset.Sell
	r := dataset.Record{
		Timestamp: time.Unix(150, 5).In(time.FixedZone("CET", 3600)),
		Price:     dec("11.5"),
		Volume:    dec("0.25"),
		Side:      &side,
	}

	tr := ToTradeRecord("XETHZEUR", 7, r)
	assert.Equal(t, "XETHZEUR", tr.Symbol)
	assert.Equal(t, int64(7), tr.Seq)
	assert.Equal(t, time.UTC, tr.Timestamp.Location())
	assert.True(t, tr.Timestamp.Equal(r.Timestamp))
	assert.True(t, tr.Price.Equal(dec("11.5")))
	require.NotNil(t, tr.Side)
	assert.Equal(t, "s", *tr.Side)
	assert.Nil(t, tr.OrderType)
	assert.Equal(t, "trade_record", tr.TableName())
}

func TestPendingRows(t *testing.T) {
	d := sampleDataset(dataset.IndexTextual, dataset.Full)

	rows := PendingRows(d, 0)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(0), rows[0].Seq)
	assert.Equal(t, int64(1), rows[1].Seq)

	rows = PendingRows(d, 1)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Seq)
	assert.True(t, rows[0].Price.Equal(dec("11.5")))

	assert.Empty(t, PendingRows(d, 2))
	assert.Empty(t, PendingRows(d, 10))
}
