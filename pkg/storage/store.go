package storage

import (
	"context"

	"cryptodata/pkg/dataset"
)

// Sink receives the merged dataset at the end of a run
type Sink interface {
	Write(ctx context.Context, d *dataset.Dataset) error
	Name() string
}
