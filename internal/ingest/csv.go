// Package ingest loads daily rate series from delimited text files.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/config"
)

// ErrNoData is returned when a file yields no observations
var ErrNoData = errors.New("no observations")

// Options controls how a file is parsed
type Options struct {
	DateColumn  string
	ValueColumn string
	DateFormat  string         // Go layout
	Start       time.Time      // observations before Start are dropped; zero keeps all
	Location    *time.Location // timezone of the dates
}

// OptionsFromConfig converts the data section into parsing options
func OptionsFromConfig(cfg config.DataConfig) (Options, error) {
	start, err := cfg.StartTime()
	if err != nil {
		return Options{}, fmt.Errorf("invalid start date: %w", err)
	}
	return Options{
		DateColumn:  cfg.DateColumn,
		ValueColumn: cfg.ValueColumn,
		DateFormat:  cfg.DateFormat,
		Start:       start,
		Location:    cfg.Location(),
	}, nil
}

// LoadCSV reads the series stored at path
func LoadCSV(path string, opts Options) (analytics.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	series, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// ReadCSV parses a header row followed by one observation per line. Comma
// and semicolon delimiters are accepted, as are decimal commas in values.
// Rows with an empty value are skipped. The result is sorted by date.
func ReadCSV(r io.Reader, opts Options) (analytics.Series, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = detectDelimiter(data)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	dateIdx, valueIdx, err := locateColumns(header, opts)
	if err != nil {
		return nil, err
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var series analytics.Series
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		if dateIdx >= len(record) || valueIdx >= len(record) {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(dateIdx, valueIdx)+1, len(record))
		}
		raw := strings.TrimSpace(record[valueIdx])
		if raw == "" {
			continue
		}

		ts, err := time.ParseInLocation(opts.DateFormat, strings.TrimSpace(record[dateIdx]), loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, record[dateIdx], err)
		}
		value, err := ParseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		series = append(series, analytics.TimeSeriesPoint{Time: ts, Value: value})
	}

	return Normalize(series, opts.Start)
}

// Normalize sorts series by time, validates it and drops points before start
func Normalize(series analytics.Series, start time.Time) (analytics.Series, error) {
	out := series.Clone()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if err := out.Validate(); err != nil {
		return nil, err
	}
	if !start.IsZero() {
		out = out.Since(start)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// ParseValue parses a quote such as "71.2345", "71,2345", "1 071,50",
// "1.071,50" or "1,071.50"
func ParseValue(raw string) (float64, error) {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, raw)
	// With both separators present the last one is the decimal mark
	dot, comma := strings.LastIndexByte(s, '.'), strings.LastIndexByte(s, ',')
	switch {
	case comma > dot && dot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma > dot:
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	f, _ := d.Float64()
	return f, nil
}

func locateColumns(header []string, opts Options) (int, int, error) {
	dateIdx, valueIdx := -1, -1
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(name, opts.DateColumn):
			dateIdx = i
		case strings.EqualFold(name, opts.ValueColumn):
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return 0, 0, fmt.Errorf("date column %q not found", opts.DateColumn)
	}
	if valueIdx < 0 {
		return 0, 0, fmt.Errorf("value column %q not found", opts.ValueColumn)
	}
	return dateIdx, valueIdx, nil
}

// detectDelimiter picks ';' when the header line has semicolons and no commas
func detectDelimiter(data []byte) rune {
	first := string(data)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if strings.Contains(first, ";") && !strings.Contains(first, ",") {
		return ';'
	}
	return ','
}
