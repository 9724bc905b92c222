package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/config"
)

func defaultOptions(t *testing.T) Options {
	t.Helper()
	opts, err := OptionsFromConfig(config.DefaultConfig().Data)
	if err != nil {
		t.Fatalf("OptionsFromConfig failed: %v", err)
	}
	return opts
}

func TestReadCSV_SemicolonDecimalComma(t *testing.T) {
	input := "date;exrate\n" +
		"03.04.2015;57,0374\n" +
		"01.04.2015;58,4643\n" +
		"31.03.2015;58,4643\n" +
		"02.04.2015;\n" +
		"04.04.2015;56,4448\n"

	series, err := ReadCSV(strings.NewReader(input), defaultOptions(t))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	want := []struct {
		day   int
		value float64
	}{{1, 58.4643}, {3, 57.0374}, {4, 56.4448}}
	if len(series) != len(want) {
		t.Fatalf("Expected %d points, got %d: %v", len(want), len(series), series)
	}
	for i, w := range want {
		if series[i].Time.Day() != w.day || series[i].Time.Month() != time.April {
			t.Errorf("Point %d: unexpected date %v", i, series[i].Time)
		}
		if series[i].Value != w.value {
			t.Errorf("Point %d: expected %v, got %v", i, w.value, series[i].Value)
		}
	}
}

func TestReadCSV_CommaDelimited(t *testing.T) {
	opts := Options{DateColumn: "Date", ValueColumn: "Close", DateFormat: time.DateOnly}
	input := "\ufeffDate, Open, Close\n2024-01-02, 1.0, \"1,071.50\"\n2024-01-03, 1.0, 1072.25\n"

	series, err := ReadCSV(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(series) != 2 || series[0].Value != 1071.5 || series[1].Value != 1072.25 {
		t.Errorf("Unexpected series %v", series)
	}
	if series[0].Time.Location() != time.UTC {
		t.Errorf("Expected UTC dates, got %v", series[0].Time.Location())
	}
}

func TestReadCSV_Errors(t *testing.T) {
	opts := defaultOptions(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing date column", "day;exrate\n01.05.2015;50\n", "date column"},
		{"missing value column", "date;rate\n01.05.2015;50\n", "value column"},
		{"bad date", "date;exrate\n2015-05-01;50\n", "line 2: invalid date"},
		{"bad value", "date;exrate\n01.05.2015;abc\n", "line 2: invalid value"},
		{"short row", "date;other;exrate\n01.05.2015\n", "expected at least 3 fields"},
		{"duplicate date", "date;exrate\n01.05.2015;50\n01.05.2015;51\n", "duplicate timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := ReadCSV(strings.NewReader(""), opts); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for empty input, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("date;exrate\n01.01.2014;50\n"), opts); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData when every row predates the start, got %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchange_rate.csv")
	if err := os.WriteFile(path, []byte("date;exrate\n01.04.2015;58,4643\n"), 0644); err != nil {
		t.Fatal(err)
	}

	series, err := LoadCSV(path, defaultOptions(t))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(series) != 1 {
		t.Errorf("Expected 1 point, got %d", len(series))
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), defaultOptions(t)); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNormalize(t *testing.T) {
	base := time.Date(2015, 4, 1, 0, 0, 0, 0, time.UTC)
	in := analytics.Series{
		{Time: base.AddDate(0, 0, 2), Value: 3},
		{Time: base, Value: 1},
		{Time: base.AddDate(0, 0, -5), Value: 0},
	}

	out, err := Normalize(in, base)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(out) != 2 || out[0].Value != 1 || out[1].Value != 3 {
		t.Errorf("Unexpected output %v", out)
	}
	if in[0].Value != 3 {
		t.Error("Normalize must not reorder its input")
	}
}

func TestParseValue(t *testing.T) {
	tests := map[string]float64{
		"71.2345":     71.2345,
		"71,2345":     71.2345,
		"1 071,50":    1071.5,
		"1,071.50":    1071.5,
		"1.071,50":    1071.5,
		"1.234.567,8": 1234567.8,
		"27,2856":     27.2856,
		"-0,5":        -0.5,
		"1\u00a0000":  1000,
	}
	for in, want := range tests {
		got, err := ParseValue(in)
		if err != nil || got != want {
			t.Errorf("ParseValue(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseValue("n/a"); err == nil {
		t.Error("Expected error for non-numeric value")
	}
}
