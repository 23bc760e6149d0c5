// Package fetcher reads the raw input tables and documents: delimited text in
// legacy encodings, XLSX sheets, and JSON files.
package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoHeader is returned when a table has no header row at all.
var ErrNoHeader = errors.New("missing header row")

// DelimitedOptions configures the delimited-text reader.
type DelimitedOptions struct {
	Delimiter  rune   // default ','
	Encoding   string // htmlindex name, e.g. "latin1"; empty means UTF-8
	Comment    rune   // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// Table is a header plus data rows, all as raw strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex maps each trimmed header name to its position.
// Later duplicates win, matching how the last same-named column shadows earlier ones.
func (t *Table) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, col := range t.Header {
		idx[strings.TrimSpace(col)] = i
	}
	return idx
}

// ReadDelimited decodes r with the configured encoding and parses it as
// delimiter-separated text. The first record is the header. Rows with fewer
// fields than the header are padded with empty strings.
func ReadDelimited(ctx context.Context, r io.Reader, opts DelimitedOptions) (*Table, error) {
	decoded, err := DecodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	var tbl Table
	first := true
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}

		if first {
			first = false
			if len(record) > 0 {
				record[0] = trimBOM(record[0])
			}
			tbl.Header = record
			continue
		}

		for len(record) < len(tbl.Header) {
			record = append(record, "")
		}
		tbl.Rows = append(tbl.Rows, record)
	}

	if tbl.Header == nil {
		return nil, eris.Wrap(ErrNoHeader, "csv")
	}
	return &tbl, nil
}

// trimBOM drops a byte order mark, including one already mis-decoded as latin1.
func trimBOM(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimPrefix(s, "\u00ef\u00bb\u00bf")
}
