package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `STATE/UT,YEAR,JANUARY,FEBRUARY,MARCH,APRIL,MAY,JUNE,JULY,AUGUST,SEPTEMBER,OCTOBER,NOVEMBER,DECEMBER,TOTAL
Kerala,2014,10,11,12,13,14,15,16,17,18,19,20,21,186
Assam,2014,1,2,3,4,5,6,7,8,9,10,11,12,78
Kerala,2015,20,21,22,23,24,25,26,27,28,29,30,31,306
Assam,2015,2,3,4,5,6,7,8,9,10,11,12,13,90
`

func TestReadWide(t *testing.T) {
	rows, err := ReadWide(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].State != "Kerala" || rows[0].Year != 2014 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Counts[11] != 12 {
		t.Fatalf("expected DECEMBER=12, got %d", rows[1].Counts[11])
	}
}

func TestReadWideNormalizesHeader(t *testing.T) {
	input := "\ufeff state/ut , Year,january,February,MARCH,april,May,June,july,August,september,October,november,December\n" +
		"Goa,2010,1,1,1,1,1,1,1,1,1,1,1,5\n"
	rows, err := ReadWide(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].State != "Goa" || rows[0].Counts[11] != 5 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestReadWideMissingColumn(t *testing.T) {
	input := "STATE/UT,YEAR,JANUARY\nGoa,2010,1\n"
	_, err := ReadWide(strings.NewReader(input))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "FEBRUARY") {
		t.Fatalf("expected error to name FEBRUARY, got %v", err)
	}
}

func TestReadWideRejectsBadCells(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		column string
		row    string
	}{
		{"blank count", "Kerala,2014,10,11", "Kerala,2014,,11", "JANUARY", "row 2"},
		{"non-numeric count", "Kerala,2014,10", "Kerala,2014,ten", "JANUARY", "row 2"},
		{"decimal count", "Assam,2014,1,2", "Assam,2014,1,2.0", "FEBRUARY", "row 3"},
		{"float one", "Assam,2015,2,3", "Assam,2015,1.0,3", "JANUARY", "row 5"},
		{"blank year", "Kerala,2015,20", "Kerala,,20", "YEAR", "row 4"},
		{"whitespace year", "Kerala,2015,20", "Kerala, ,20", "YEAR", "row 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := strings.Replace(sampleCSV, tt.from, tt.to, 1)
			if input == sampleCSV {
				t.Fatalf("fixture replacement %q did not apply", tt.from)
			}
			_, err := ReadWide(strings.NewReader(input))
			if !errors.Is(err, ErrInvalidCell) {
				t.Fatalf("expected ErrInvalidCell, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.column) || !strings.Contains(err.Error(), tt.row) {
				t.Fatalf("expected error to name %s and %s, got %v", tt.row, tt.column, err)
			}
		})
	}
}

func TestReadWideTrimsNumericCells(t *testing.T) {
	input := strings.Replace(sampleCSV, "Assam,2014,1,2", "Assam, 2014 , 1 ,2", 1)
	rows, err := ReadWide(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[1].Year != 2014 || rows[1].Counts[0] != 1 {
		t.Fatalf("unexpected row: %+v", rows[1])
	}
}

func TestReadWideEmpty(t *testing.T) {
	input := "STATE/UT,YEAR\n"
	if _, err := ReadWide(strings.NewReader(input)); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestLoadWideCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accidents.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	rows, err := LoadWideCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	if _, err := LoadWideCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
