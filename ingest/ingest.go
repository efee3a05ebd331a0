// Package ingest parses uploaded tabular files into a time series.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/forecastd/timedataset"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported file format, expected .csv or .xlsx")
	ErrEmptyTable         = errors.New("table has no header")
	ErrNoRows             = errors.New("table has no data rows")
	ErrMissingColumn      = errors.New("target column not found")
	ErrTimeColumnTarget   = errors.New("target column is the timestamp column")
	ErrInvalidTimestamp   = errors.New("unrecognized timestamp")
	ErrInvalidValue       = errors.New("target value is not numeric")
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromFilename picks the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%q, %w", name, ErrUnsupportedFormat)
}

// Table is a header row followed by string cells. Rows may be shorter than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read parses r in the given format.
func Read(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	}
	return nil, ErrUnsupportedFormat
}

func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv, %w", err)
	}
	return newTable(records)
}

// ReadXLSX reads the first sheet of a workbook using the cells' formatted values.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to open workbook, %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet %q, %w", sheets[0], err)
	}
	return newTable(rows)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmptyTable
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return &Table{Header: header, Rows: rows}, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// Series builds a time series from the first column as timestamps and the target column as
// values. Rows are sorted by timestamp and missing values become NaN gaps.
func (t *Table) Series(target string) (*timedataset.TimeDataset, error) {
	col, ok := t.Column(target)
	if !ok {
		return nil, fmt.Errorf("%q, %w", target, ErrMissingColumn)
	}
	if col == 0 {
		return nil, fmt.Errorf("%q, %w", target, ErrTimeColumnTarget)
	}
	if len(t.Rows) == 0 {
		return nil, ErrNoRows
	}

	obs := make([]observation, 0, len(t.Rows))
	for i, row := range t.Rows {
		// header is line 1
		line := i + 2
		ts, err := ParseTime(cell(row, 0))
		if err != nil {
			return nil, fmt.Errorf("line %d, %w", line, err)
		}
		val, err := ParseValue(cell(row, col))
		if err != nil {
			return nil, fmt.Errorf("line %d, %w", line, err)
		}
		obs = append(obs, observation{t: ts, y: val})
	}

	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].t.Before(obs[j].t)
	})

	tSeries := make([]time.Time, len(obs))
	ySeries := make([]float64, len(obs))
	for i, o := range obs {
		if i > 0 && o.t.Equal(obs[i-1].t) {
			return nil, fmt.Errorf("%s, %w", o.t.Format(time.RFC3339), ErrDuplicateTimestamp)
		}
		tSeries[i] = o.t
		ySeries[i] = o.y
	}
	return timedataset.NewUnivariateDataset(tSeries, ySeries)
}

type observation struct {
	t time.Time
	y float64
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Load reads a csv or xlsx upload chosen by filename and extracts the target series.
func Load(r io.Reader, filename, target string) (*timedataset.TimeDataset, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	table, err := Read(r, format)
	if err != nil {
		return nil, err
	}
	return table.Series(target)
}

// timeLayouts are tried in order. 01-02-06 is the default rendering of spreadsheet date cells.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"01-02-06",
	"2006-01",
	"2006",
}

// ParseTime accepts the supported layouts or Unix seconds. Timestamps without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp, %w", ErrInvalidTimestamp)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q, %w", s, ErrInvalidTimestamp)
}

// ParseValue reads a numeric cell. Empty, NA, NaN and null cells are gaps.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "n/a":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q, %w", s, ErrInvalidValue)
	}
	return v, nil
}
