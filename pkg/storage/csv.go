package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cryptodata/pkg/dataset"
	errs "cryptodata/pkg/errors"
	"cryptodata/pkg/logger"
)

const (
	volumeColumn    = "volume"
	sideColumn      = "buy/sell"
	orderTypeColumn = "market/limit"

	// TextualLayout is the layout used when writing a textual index
	TextualLayout = "2006-01-02 15:04:05.999999999"
)

// textualLayouts are tried in order when reading a textual index
var textualLayouts = []string{
	TextualLayout,
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

// CSVStore reads and writes a dataset at a single path
type CSVStore struct {
	path   string
	logger logger.Logger
}

// NewCSVStore creates a store for path
func NewCSVStore(path string, log logger.Logger) *CSVStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &CSVStore{
		path:   path,
		logger: log.WithField("component", "csv_store"),
	}
}

// Name identifies the sink in logs
func (s *CSVStore) Name() string {
	return "csv:" + s.path
}

// Path returns the file path
func (s *CSVStore) Path() string {
	return s.path
}

// Exists reports whether the file is present
func (s *CSVStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Read loads the dataset for symbol. Format problems are reported as
// *errors.MalformedCheckpointError carrying the file path.
func (s *CSVStore) Read(symbol string) (*dataset.Dataset, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	d, err := DecodeCSV(f, symbol)
	if err != nil {
		var malformed *errs.MalformedCheckpointError
		if errors.As(err, &malformed) {
			malformed.Path = s.path
		}
		return nil, err
	}
	return d, nil
}

// Write saves the dataset atomically
func (s *CSVStore) Write(ctx context.Context, d *dataset.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if err := EncodeCSV(file, d); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync dataset file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close dataset file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace dataset file: %w", err)
	}

	s.logger.DebugWithFields("Dataset saved", map[string]interface{}{
		"path":    s.path,
		"records": d.Len(),
		"schema":  d.Schema.String(),
		"index":   d.Index.String(),
	})

	return nil
}

// Header returns the CSV header row for a dataset
func Header(symbol string, schema dataset.Schema) []string {
	header := []string{"", dataset.PriceColumn(symbol), volumeColumn}
	if schema.Side {
		header = append(header, sideColumn)
	}
	if schema.OrderType {
		header = append(header, orderTypeColumn)
	}
	return header
}

// EncodeCSV writes d, header first
func EncodeCSV(w io.Writer, d *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(d.Symbol, d.Schema)); err != nil {
		return err
	}

	row := make([]string, 0, 5)
	for _, r := range d.Records {
		row = row[:0]
		row = append(row, FormatIndex(r.Timestamp, d.Index), r.Price.String(), r.Volume.String())
		if d.Schema.Side {
			row = append(row, optional(r.Side))
		}
		if d.Schema.OrderType {
			row = append(row, optional(r.OrderType))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func optional[T ~string](v *T) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

// FormatIndex renders a timestamp in the given index format
func FormatIndex(t time.Time, format dataset.IndexFormat) string {
	if format == dataset.IndexEpochSeconds {
		return dataset.TimeToSeconds(t).String()
	}
	return t.UTC().Format(TextualLayout)
}

type columns struct {
	price, volume, side, orderType int
}

func locateColumns(header []string, symbol string) (columns, error) {
	cols := columns{price: -1, volume: -1, side: -1, orderType: -1}
	priceName := dataset.PriceColumn(symbol)
	for i, name := range header {
		if i == 0 {
			continue
		}
		switch strings.TrimSpace(name) {
		case priceName:
			cols.price = i
		case volumeColumn:
			cols.volume = i
		case sideColumn:
			cols.side = i
		case orderTypeColumn:
			cols.orderType = i
		}
	}

	var missing []string
	if cols.price < 0 {
		missing = append(missing, priceName)
	}
	if cols.volume < 0 {
		missing = append(missing, volumeColumn)
	}
	if len(missing) > 0 {
		return cols, &errs.MalformedCheckpointError{
			Row:    1,
			Reason: fmt.Sprintf("missing column(s) %s", strings.Join(missing, ", ")),
		}
	}
	return cols, nil
}

// DecodeCSV parses a dataset for symbol. The first index cell decides whether
// the index holds epoch seconds or textual timestamps; every other cell must
// parse the same way.
func DecodeCSV(r io.Reader, symbol string) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &errs.MalformedCheckpointError{Reason: "file is empty"}
	}
	if err != nil {
		return nil, &errs.MalformedCheckpointError{Row: 1, Reason: err.Error()}
	}

	cols, err := locateColumns(header, symbol)
	if err != nil {
		return nil, err
	}

	d := dataset.New(symbol, dataset.Schema{
		Side:      cols.side >= 0,
		OrderType: cols.orderType >= 0,
	})

	var parseIndex func(string) (time.Time, error)
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &errs.MalformedCheckpointError{Row: row, Reason: err.Error()}
		}

		if parseIndex == nil {
			d.Index, parseIndex = detectIndex(record[0])
		}

		ts, err := parseIndex(record[0])
		if err != nil {
			return nil, &errs.MalformedCheckpointError{
				Row:    row,
				Value:  record[0],
				Reason: fmt.Sprintf("index is not a %s timestamp", d.Index),
			}
		}

		rec := dataset.Record{Timestamp: ts}
		if rec.Price, err = decimal.NewFromString(strings.TrimSpace(record[cols.price])); err != nil {
			return nil, &errs.MalformedCheckpointError{Row: row, Value: record[cols.price], Reason: "invalid price"}
		}
		if rec.Volume, err = decimal.NewFromString(strings.TrimSpace(record[cols.volume])); err != nil {
			return nil, &errs.MalformedCheckpointError{Row: row, Value: record[cols.volume], Reason: "invalid volume"}
		}
		if cols.side >= 0 {
			side, err := dataset.ParseSide(strings.TrimSpace(record[cols.side]))
			if err != nil {
				return nil, &errs.MalformedCheckpointError{Row: row, Value: record[cols.side], Reason: err.Error()}
			}
			rec.Side = &side
		}
		if cols.orderType >= 0 {
			ot, err := dataset.ParseOrderType(strings.TrimSpace(record[cols.orderType]))
			if err != nil {
				return nil, &errs.MalformedCheckpointError{Row: row, Value: record[cols.orderType], Reason: err.Error()}
			}
			rec.OrderType = &ot
		}

		d.Records = append(d.Records, rec)
	}

	return d, nil
}

func detectIndex(first string) (dataset.IndexFormat, func(string) (time.Time, error)) {
	if _, err := decimal.NewFromString(strings.TrimSpace(first)); err == nil {
		return dataset.IndexEpochSeconds, parseEpochSeconds
	}
	return dataset.IndexTextual, parseTextual
}

func parseEpochSeconds(s string) (time.Time, error) {
	secs, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	if !dataset.SecondsInRange(secs) {
		return time.Time{}, fmt.Errorf("%s is out of range", secs)
	}
	return dataset.SecondsToTime(secs), nil
}

func parseTextual(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range textualLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
