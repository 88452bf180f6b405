package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cryptodata/pkg/dataset"
	errs "cryptodata/pkg/errors"
	"cryptodata/pkg/logger"
	"cryptodata/pkg/storage"
)

// State is the resume point of a collection run
type State struct {
	// Path is the dataset the state was loaded from, empty for a fresh start
	Path string
	// Cursor is the last known trade timestamp in nanoseconds since the epoch
	Cursor int64
	// Prefix holds the previously collected records in their original order
	Prefix *dataset.Dataset
}

// Empty returns the state of a run without prior data
func Empty(symbol string) *State {
	return &State{
		Cursor: 0,
		Prefix: dataset.New(symbol, dataset.Schema{}),
	}
}

// Resumed reports whether the state continues earlier records
func (s *State) Resumed() bool {
	return s.Prefix.Len() > 0
}

// LastTimestamp returns the timestamp of the last prefix record
func (s *State) LastTimestamp() (time.Time, bool) {
	last, ok := s.Prefix.Last()
	if !ok {
		return time.Time{}, false
	}
	return last.Timestamp, true
}

// FromDataset builds the state continuing after d
func FromDataset(d *dataset.Dataset) *State {
	s := &State{Prefix: d}
	if last, ok := d.Last(); ok {
		s.Cursor = dataset.TimeToCursor(last.Timestamp)
	}
	return s
}

// Loader loads checkpoints and logs what it found
type Loader struct {
	logger logger.Logger
}

// NewLoader creates a loader
func NewLoader(log logger.Logger) *Loader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Loader{logger: log.WithField("component", "checkpoint")}
}

// Load reads a dataset for symbol from r
func (l *Loader) Load(r io.Reader, symbol string) (*State, error) {
	d, err := storage.DecodeCSV(r, symbol)
	if err != nil {
		return nil, err
	}
	return l.loaded(FromDataset(d)), nil
}

// LoadFile reads the dataset at path. An empty path means no prior data.
func (l *Loader) LoadFile(path, symbol string) (*State, error) {
	if path == "" {
		l.logger.Debug("No checkpoint given, starting from the beginning of history")
		return Empty(symbol), nil
	}

	d, err := storage.NewCSVStore(path, l.logger).Read(symbol)
	if err != nil {
		var malformed *errs.MalformedCheckpointError
		if errors.As(err, &malformed) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", path, err)
	}

	state := FromDataset(d)
	state.Path = path
	return l.loaded(state), nil
}

func (l *Loader) loaded(s *State) *State {
	fields := map[string]interface{}{
		"path":    s.Path,
		"records": s.Prefix.Len(),
		"schema":  s.Prefix.Schema.String(),
		"index":   s.Prefix.Index.String(),
		"cursor":  s.Cursor,
	}
	if ts, ok := s.LastTimestamp(); ok {
		fields["last_trade"] = ts
	}
	l.logger.InfoWithFields("Checkpoint loaded", fields)
	return s
}

// Load reads a dataset for symbol from r without logging
func Load(r io.Reader, symbol string) (*State, error) {
	return NewLoader(logger.NewNopLogger()).Load(r, symbol)
}

// LoadFile reads the dataset at path without logging
func LoadFile(path, symbol string) (*State, error) {
	return NewLoader(logger.NewNopLogger()).LoadFile(path, symbol)
}

// Exists reports whether path names an existing file
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
