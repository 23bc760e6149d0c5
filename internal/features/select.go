// Package features projects the preprocessed sale table onto a numeric
// feature matrix and target vector.
package features

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/treeprice/internal/property"
)

// DefaultFeatures are the model inputs used when none are configured.
var DefaultFeatures = []string{property.ColTreeHeightValue, property.ColYear, property.ColMonth}

// textColumns are derived columns that hold text or dates, never numbers.
var textColumns = map[string]bool{
	property.ColDateOfSale:      true,
	property.ColStreetNameLower: true,
}

// DefaultTarget is the predicted column.
const DefaultTarget = property.ColPrice

// Matrix holds row-aligned features and target.
type Matrix struct {
	Names  []string
	Target string
	X      [][]float64
	Y      []float64
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.Y)
}

// Rows returns a new matrix holding the given rows in the given order.
// Row slices are shared with m.
func (m *Matrix) Rows(idx []int) *Matrix {
	out := &Matrix{
		Names:  m.Names,
		Target: m.Target,
		X:      make([][]float64, len(idx)),
		Y:      make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = m.X[j]
		out.Y[i] = m.Y[j]
	}
	return out
}

// Select extracts the named feature columns and the target column from ds.
// Derived columns are read from the cleaned record; any other column must be
// present in the source table and parse as a number.
func Select(ds *property.Dataset, names []string, target string) (*Matrix, error) {
	if len(names) == 0 {
		names = DefaultFeatures
	}
	if target == "" {
		target = DefaultTarget
	}

	available := make(map[string]bool, len(ds.Columns))
	for _, c := range ds.Columns {
		available[c] = true
	}
	for _, c := range append(append([]string(nil), names...), target) {
		if !available[c] {
			return nil, &property.MissingColumnError{Column: c, Available: ds.Columns}
		}
		if textColumns[c] {
			return nil, eris.Errorf("features: column %q is not numeric (use Year and Month for the sale date)", c)
		}
	}

	m := &Matrix{
		Names:  append([]string(nil), names...),
		Target: target,
		X:      make([][]float64, len(ds.Records)),
		Y:      make([]float64, len(ds.Records)),
	}
	for i := range ds.Records {
		rec := &ds.Records[i]
		row := make([]float64, len(names))
		for j, name := range names {
			v, err := value(rec, name)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		y, err := value(rec, target)
		if err != nil {
			return nil, err
		}
		m.X[i] = row
		m.Y[i] = y
	}
	return m, nil
}

// Vector builds one feature row from named values in the order of names.
func Vector(names []string, values map[string]float64) ([]float64, error) {
	row := make([]float64, len(names))
	for i, name := range names {
		v, ok := values[name]
		if !ok {
			return nil, &property.MissingColumnError{Column: name}
		}
		row[i] = v
	}
	return row, nil
}

func value(rec *property.Record, name string) (float64, error) {
	switch name {
	case property.ColPrice:
		return rec.Price, nil
	case property.ColYear:
		return float64(rec.Year), nil
	case property.ColMonth:
		return float64(rec.Month), nil
	case property.ColTreeHeightValue:
		return rec.TreeHeightValue, nil
	}

	raw, ok := rec.Raw[name]
	if !ok {
		return 0, &property.MissingColumnError{Column: name}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "features: column %q row %d is not numeric", name, rec.Row)
	}
	return v, nil
}
