package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
)

const (
	// StateColumn 州/联邦属地列
	StateColumn = "STATE/UT"
	// YearColumn 年份列
	YearColumn = "YEAR"
)

// Months 月份列，按日历顺序
var Months = []string{
	"JANUARY", "FEBRUARY", "MARCH", "APRIL", "MAY", "JUNE",
	"JULY", "AUGUST", "SEPTEMBER", "OCTOBER", "NOVEMBER", "DECEMBER",
}

var (
	// ErrMissingColumn 缺少必需列
	ErrMissingColumn = errors.New("missing column")
	// ErrEmptyInput 输入为空
	ErrEmptyInput = errors.New("input has no data rows")
	// ErrInvalidCell 年份或月份计数不是整数
	ErrInvalidCell = errors.New("invalid integer cell")
)

// WideRow 宽表行：一个州/年份，每月一列
type WideRow struct {
	State  string
	Year   int
	Counts [12]int
}

// wideCSVRow gocsv 解码目标
type wideCSVRow struct {
	State     string `csv:"STATE/UT"`
	Year      int    `csv:"YEAR"`
	January   int    `csv:"JANUARY"`
	February  int    `csv:"FEBRUARY"`
	March     int    `csv:"MARCH"`
	April     int    `csv:"APRIL"`
	May       int    `csv:"MAY"`
	June      int    `csv:"JUNE"`
	July      int    `csv:"JULY"`
	August    int    `csv:"AUGUST"`
	September int    `csv:"SEPTEMBER"`
	October   int    `csv:"OCTOBER"`
	November  int    `csv:"NOVEMBER"`
	December  int    `csv:"DECEMBER"`
}

func (r wideCSVRow) toWide() WideRow {
	return WideRow{
		State: strings.TrimSpace(r.State),
		Year:  r.Year,
		Counts: [12]int{
			r.January, r.February, r.March, r.April, r.May, r.June,
			r.July, r.August, r.September, r.October, r.November, r.December,
		},
	}
}

var headerCaser = cases.Upper(language.Und)

// NormalizeHeader 去除空白并统一大小写
func NormalizeHeader(name string) string {
	return headerCaser.String(strings.TrimSpace(name))
}

// LoadWideCSV 从文件读取宽表
func LoadWideCSV(ctx context.Context, path string) ([]WideRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := ReadWide(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// ReadWide 解析宽表CSV。表头大小写与空白不敏感，多余列忽略。
func ReadWide(r io.Reader) ([]WideRow, error) {
	// 去掉可能存在的 UTF-8 BOM
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyInput
	}

	header := records[0]
	for i := range header {
		header[i] = NormalizeHeader(header[i])
	}
	if err := checkColumns(header); err != nil {
		return nil, err
	}
	if err := checkIntegerCells(header, records); err != nil {
		return nil, err
	}

	var decodedRows []wideCSVRow
	if err := gocsv.UnmarshalCSV(&recordReader{records: records}, &decodedRows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	rows := make([]WideRow, len(decodedRows))
	for i, row := range decodedRows {
		rows[i] = row.toWide()
		if rows[i].State == "" {
			return nil, fmt.Errorf("row %d: empty %s", i+2, StateColumn)
		}
	}
	return rows, nil
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}
	required := append([]string{StateColumn, YearColumn}, Months...)
	for _, name := range required {
		if !present[name] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return nil
}

// checkIntegerCells 年份与月份列必须是整数；空值不能按 0 处理
func checkIntegerCells(header []string, records [][]string) error {
	numeric := make(map[string]bool, len(Months)+1)
	numeric[YearColumn] = true
	for _, m := range Months {
		numeric[m] = true
	}
	for i := 1; i < len(records); i++ {
		record := records[i]
		for col, name := range header {
			if !numeric[name] {
				continue
			}
			var cell string
			if col < len(record) {
				cell = strings.TrimSpace(record[col])
				record[col] = cell
			}
			if _, err := strconv.Atoi(cell); err != nil {
				return fmt.Errorf("row %d: %w: %s=%q", i+1, ErrInvalidCell, name, cell)
			}
		}
	}
	return nil
}

// recordReader 将已读取的记录回放给 gocsv
type recordReader struct {
	records [][]string
	pos     int
}

func (r *recordReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	record := r.records[r.pos]
	r.pos++
	return record, nil
}

func (r *recordReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}
