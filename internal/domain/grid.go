package domain

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const unnamedColumnPrefix = "Unnamed: "

// Grid is the raw tabular content of a spreadsheet. Columns holds the labels
// of the column row; every row has exactly len(Columns) cells.
type Grid struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Width returns the number of columns.
func (g *Grid) Width() int {
	return len(g.Columns)
}

// Encode returns the JSON text stored in SheetPost.RawGrid.
func (g *Grid) Encode() (string, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encode grid: %w", err)
	}
	return string(b), nil
}

// DecodeGrid parses a grid previously produced by Encode.
func DecodeGrid(s string) (*Grid, error) {
	var g Grid
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return nil, fmt.Errorf("%w: decode grid: %v", ErrCorruptCacheEntry, err)
	}
	g.normalize()
	return &g, nil
}

// ParseCSV reads an exported CSV document. The first record becomes the
// column row; blank column names are replaced by "Unnamed: N" and short rows
// are padded with empty cells.
func ParseCSV(content []byte) (*Grid, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.New("empty csv document")
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	g := &Grid{Columns: make([]string, len(header))}
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = unnamedColumnPrefix + strconv.Itoa(i)
		}
		g.Columns[i] = name
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		g.Rows = append(g.Rows, record)
	}

	g.normalize()
	return g, nil
}

// GridFromValues builds a grid from a worksheet cell matrix. The matrix has
// no column row, so columns are labelled by position and every value stays a
// data row.
func GridFromValues(values [][]string) *Grid {
	width := 0
	for _, row := range values {
		if len(row) > width {
			width = len(row)
		}
	}

	g := &Grid{Columns: make([]string, width)}
	for i := range g.Columns {
		g.Columns[i] = strconv.Itoa(i)
	}
	g.Rows = make([][]string, len(values))
	for i, row := range values {
		g.Rows[i] = append([]string(nil), row...)
	}
	g.normalize()
	return g
}

// normalize widens the column row to the widest data row and pads every row
// to the grid width.
func (g *Grid) normalize() {
	for _, row := range g.Rows {
		for len(g.Columns) < len(row) {
			g.Columns = append(g.Columns, unnamedColumnPrefix+strconv.Itoa(len(g.Columns)))
		}
	}
	for i, row := range g.Rows {
		if len(row) < len(g.Columns) {
			padded := make([]string, len(g.Columns))
			copy(padded, row)
			g.Rows[i] = padded
		}
	}
}

// WriteCSV writes the column row followed by all data rows.
func (g *Grid) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(g.Columns); err != nil {
		return fmt.Errorf("write columns: %w", err)
	}
	if err := cw.WriteAll(g.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
