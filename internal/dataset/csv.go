package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/Alias1177/Allocator/internal/model"
)

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006/01/02",
	"01/02/2006",
}

// ParseDate accepts the date formats commonly produced by market data exports.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", model.ErrInvalidInput, s)
}

// LoadCSV reads a wide returns table: the header holds a date column followed
// by asset names, each following row a date and one return per asset.
func LoadCSV(r io.Reader, opts ...Option) (*Dataset, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.columns) < 3 {
		return nil, fmt.Errorf("%w: header needs a date column and at least 2 assets", model.ErrInvalidInput)
	}
	assets := make([]string, len(t.columns)-1)
	for i, name := range t.columns[1:] {
		assets[i] = strings.TrimSpace(name)
	}

	dates := make([]time.Time, 0, len(t.rows))
	rows := make([][]float64, 0, len(t.rows))
	for k, rec := range t.rows {
		date, err := ParseDate(rec[t.columns[0]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", k+2, err)
		}
		row := make([]float64, len(assets))
		for j, col := range t.columns[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", model.ErrInvalidInput, k+2, assets[j], err)
			}
			row[j] = v
		}
		dates = append(dates, date)
		rows = append(rows, row)
	}
	return New(dates, assets, rows, opts...)
}

// LoadFile opens path and reads it with LoadCSV.
func LoadFile(path string, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening returns file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, opts...)
}

// table is a parsed csv: header fields in file order and one map per row keyed by them
type table struct {
	columns []string
	rows    []map[string]string
}

func readTable(r io.Reader) (table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return table{}, fmt.Errorf("reading csv: %w", err)
	}

	// gocsv keys rows by header name, so the order comes from the first record
	header, err := gocsv.DefaultCSVReader(bytes.NewReader(data)).Read()
	if err != nil {
		return table{}, fmt.Errorf("%w: csv needs a header and at least one row: %v", model.ErrInvalidInput, err)
	}
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		if seen[col] {
			return table{}, fmt.Errorf("%w: duplicate column %q", model.ErrInvalidInput, strings.TrimSpace(col))
		}
		seen[col] = true
	}

	rows, err := gocsv.CSVToMaps(bytes.NewReader(data))
	if err != nil {
		return table{}, fmt.Errorf("%w: reading csv: %v", model.ErrInvalidInput, err)
	}
	if len(rows) == 0 {
		return table{}, fmt.Errorf("%w: csv needs a header and at least one row", model.ErrInvalidInput)
	}
	return table{columns: header, rows: rows}, nil
}

// Series is a single date-indexed return stream, used for benchmarks.
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// Align returns the series values at each of dates, failing on the first missing one.
func (s Series) Align(dates []time.Time) ([]float64, error) {
	index := make(map[int64]float64, len(s.Dates))
	for i, d := range s.Dates {
		index[d.UnixNano()] = s.Values[i]
	}
	out := make([]float64, len(dates))
	for i, d := range dates {
		v, ok := index[d.UnixNano()]
		if !ok {
			return nil, fmt.Errorf("%w: benchmark %q has no value at %s", model.ErrInvalidInput, s.Name, d.Format(time.DateOnly))
		}
		out[i] = v
	}
	return out, nil
}

// LoadSeriesCSV reads a two-column date,value table.
func LoadSeriesCSV(r io.Reader) (Series, error) {
	t, err := readTable(r)
	if err != nil {
		return Series{}, err
	}
	if len(t.columns) < 2 {
		return Series{}, fmt.Errorf("%w: series csv needs a date and a value column", model.ErrInvalidInput)
	}
	dateCol, valueCol := t.columns[0], t.columns[1]
	s := Series{Name: strings.TrimSpace(valueCol)}
	for k, rec := range t.rows {
		date, err := ParseDate(rec[dateCol])
		if err != nil {
			return Series{}, fmt.Errorf("line %d: %w", k+2, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueCol]), 64)
		if err != nil {
			return Series{}, fmt.Errorf("%w: line %d: %v", model.ErrInvalidInput, k+2, err)
		}
		s.Dates = append(s.Dates, date)
		s.Values = append(s.Values, v)
	}
	return s, nil
}

// LoadSeriesFile opens path and reads it with LoadSeriesCSV.
func LoadSeriesFile(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, fmt.Errorf("opening series file: %w", err)
	}
	defer f.Close()
	return LoadSeriesCSV(f)
}
