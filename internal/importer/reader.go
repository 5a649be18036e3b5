// Package importer reads tabular restroom listings and reconciles them with
// the existing campus hierarchy.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one input line: site name, floor, room code, gender keyword and
// notes, in that column order. Line is the 1-based source line.
type Row struct {
	Site   string `json:"site"`
	Floor  string `json:"floor"`
	Code   string `json:"code"`
	Gender string `json:"gender"`
	Notes  string `json:"notes"`
	Line   int    `json:"line"`
}

// The first row is a header only when its site, floor and code cells all
// carry a column name.
var (
	siteHeaders  = []string{"site", "sede", "campus"}
	floorHeaders = []string{"floor", "piano", "level", "livello"}
	codeHeaders  = []string{"code", "codice", "room", "bagno"}
)

// ReadDelimited parses semicolon or comma separated text. The separator is
// picked from the first non-blank line. A leading header row naming the
// site, floor and code columns is skipped.
func ReadDelimited(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse delimited input: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return rowsFromRecords(records, lines), nil
}

func sniffDelimiter(data []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, ";") >= strings.Count(line, ",") && strings.Contains(line, ";") {
			return ';'
		}
		return ','
	}
	return ','
}

// ReadXLSX reads the first worksheet of an Excel workbook with the same
// column order and header rule as ReadDelimited.
func ReadXLSX(r io.Reader) ([]Row, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("no worksheet found")
	}
	sheetRows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", sheetName, err)
	}
	var records [][]string
	var lines []int
	for i, cells := range sheetRows {
		if isBlank(cells) {
			continue
		}
		records = append(records, cells)
		lines = append(lines, i+1)
	}
	return rowsFromRecords(records, lines), nil
}

func rowsFromRecords(records [][]string, lines []int) []Row {
	out := make([]Row, 0, len(records))
	first := true
	for i, record := range records {
		if isBlank(record) {
			continue
		}
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}
		out = append(out, Row{
			Site:   cell(record, 0),
			Floor:  cell(record, 1),
			Code:   cell(record, 2),
			Gender: cell(record, 3),
			Notes:  cell(record, 4),
			Line:   lines[i],
		})
	}
	return out
}

func isHeader(record []string) bool {
	return mentions(cell(record, 0), siteHeaders) &&
		mentions(cell(record, 1), floorHeaders) &&
		mentions(cell(record, 2), codeHeaders)
}

func mentions(value string, keywords []string) bool {
	lower := strings.ToLower(value)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
