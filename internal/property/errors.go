package property

import (
	"fmt"
	"strings"
)

// PriceParseError reports a price cell that does not clean to a number.
type PriceParseError struct {
	Row    int // 1-based data row, 0 when not known
	Column string
	Value  string
	Err    error
}

func (e *PriceParseError) Error() string {
	return rowMessage("price", e.Row, e.Column, e.Value, e.Err)
}

func (e *PriceParseError) Unwrap() error {
	return e.Err
}

// DateParseError reports a sale date that is not a day-first calendar date.
type DateParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *DateParseError) Error() string {
	return rowMessage("sale date", e.Row, e.Column, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// MissingColumnError reports a required column absent from a table.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("property: missing column %q", e.Column)
	}
	return fmt.Sprintf("property: missing column %q (have %s)", e.Column, strings.Join(e.Available, ", "))
}

// EmptyDatasetError reports a table with nothing to work with: no sale rows,
// or no row with a known tree height to take a median over.
type EmptyDatasetError struct {
	Reason string
}

func (e *EmptyDatasetError) Error() string {
	return "property: empty dataset: " + e.Reason
}

func rowMessage(what string, row int, column, value string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "property: invalid %s %q", what, value)
	if column != "" {
		fmt.Fprintf(&b, " in column %q", column)
	}
	if row > 0 {
		fmt.Fprintf(&b, " at row %d", row)
	}
	if err != nil {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}
