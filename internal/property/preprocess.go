// Package property loads and cleans the property-sale register and joins
// street tree heights onto each sale.
package property

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/treeprice/internal/catalog"
	"github.com/sells-group/treeprice/internal/fetcher"
)

// Canonical column names added or renamed during preprocessing.
const (
	ColPrice           = "Price"
	ColDateOfSale      = "Date_of_Sale"
	ColYear            = "Year"
	ColMonth           = "Month"
	ColStreetNameLower = "Street_Name_Lower"
	ColTreeHeightValue = "Tree_Height_Value"
)

// EmptyMedianPolicy decides the fill value when no sale has a known tree height.
type EmptyMedianPolicy string

const (
	EmptyMedianError EmptyMedianPolicy = "error"
	EmptyMedianZero  EmptyMedianPolicy = "zero"
)

// Options configures loading and preprocessing.
type Options struct {
	Delimiter    rune
	Encoding     string
	SheetName    string // xlsx only
	PriceColumn  string
	DateColumn   string
	StreetColumn string
	EmptyMedian  EmptyMedianPolicy
}

// DefaultOptions matches the public property price register export.
func DefaultOptions() Options {
	return Options{
		Delimiter:    ',',
		Encoding:     "latin1",
		PriceColumn:  "Price",
		DateColumn:   "Date of Sale (dd/mm/yyyy)",
		StreetColumn: "Street Name",
		EmptyMedian:  EmptyMedianError,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Delimiter == 0 {
		o.Delimiter = def.Delimiter
	}
	if o.PriceColumn == "" {
		o.PriceColumn = def.PriceColumn
	}
	if o.DateColumn == "" {
		o.DateColumn = def.DateColumn
	}
	if o.StreetColumn == "" {
		o.StreetColumn = def.StreetColumn
	}
	if o.EmptyMedian == "" {
		o.EmptyMedian = def.EmptyMedian
	}
	return o
}

// Record is one cleaned sale.
type Record struct {
	Row               int       `json:"row"`
	Price             float64   `json:"price"`
	DateOfSale        time.Time `json:"date_of_sale"`
	Year              int       `json:"year"`
	Month             int       `json:"month"`
	StreetName        string    `json:"street_name"`
	StreetNameLower   string    `json:"street_name_lower"`
	TreeHeightValue   float64   `json:"tree_height_value"`
	TreeHeightImputed bool      `json:"tree_height_imputed"`
	// Raw holds the source cells keyed by column name after renaming.
	Raw map[string]string `json:"-"`
}

// Stats summarizes the street join.
type Stats struct {
	Rows    int `json:"rows"`
	Matched int `json:"matched"` // street present in the catalog
	Known   int `json:"known"`   // matched with a known height
	Imputed int `json:"imputed"` // filled with the median
}

// Dataset is the enriched sale table.
type Dataset struct {
	Records          []Record `json:"records"`
	Columns          []string `json:"columns"`
	MedianTreeHeight float64  `json:"median_tree_height"`
	Stats            Stats    `json:"stats"`
}

// LoadTable reads a sale register. Files ending in .xlsx are read as
// workbooks; anything else as delimited text in opts.Encoding.
func LoadTable(ctx context.Context, path string, opts Options) (*fetcher.Table, error) {
	opts = opts.withDefaults()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		tbl, err := fetcher.ReadSheet(path, fetcher.SheetOptions{SheetName: opts.SheetName})
		if errors.Is(err, fetcher.ErrNoHeader) {
			return nil, &EmptyDatasetError{Reason: "no header row in " + path}
		}
		if err != nil {
			return nil, eris.Wrapf(err, "property: read %s", path)
		}
		return tbl, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "property: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	tbl, err := fetcher.ReadDelimited(ctx, f, fetcher.DelimitedOptions{
		Delimiter:  opts.Delimiter,
		Encoding:   opts.Encoding,
		LazyQuotes: true,
	})
	if errors.Is(err, fetcher.ErrNoHeader) {
		return nil, &EmptyDatasetError{Reason: "no header row in " + path}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "property: read %s", path)
	}
	return tbl, nil
}

// Load reads the register at path and preprocesses it against streets.
func Load(ctx context.Context, path string, streets catalog.StreetTreeMap, opts Options) (*Dataset, error) {
	tbl, err := LoadTable(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	ds, err := Preprocess(tbl, streets, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "property: preprocess %s", path)
	}
	return ds, nil
}

// Preprocess cleans the raw table and joins tree heights. In order: the date
// column is renamed to Date_of_Sale, prices are cleaned, dates parsed day
// first, Year and Month derived, street names lower-cased and looked up, and
// every row without a known height receives the median of the known heights.
func Preprocess(tbl *fetcher.Table, streets catalog.StreetTreeMap, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()
	colIdx := tbl.ColumnIndex()

	for _, col := range []string{opts.PriceColumn, opts.DateColumn, opts.StreetColumn} {
		if _, ok := colIdx[col]; !ok {
			return nil, &MissingColumnError{Column: col, Available: trimmed(tbl.Header)}
		}
	}
	if len(tbl.Rows) == 0 {
		return nil, &EmptyDatasetError{Reason: "no sale rows"}
	}

	columns := renamedColumns(tbl.Header, opts.DateColumn)
	ds := &Dataset{
		Records: make([]Record, 0, len(tbl.Rows)),
		Columns: columns,
	}

	priceIdx := colIdx[opts.PriceColumn]
	dateIdx := colIdx[opts.DateColumn]
	streetIdx := colIdx[opts.StreetColumn]

	var known []float64
	for i, row := range tbl.Rows {
		rowNum := i + 1

		price, err := CleanPrice(row[priceIdx])
		if err != nil {
			return nil, withRow(err, rowNum, opts.PriceColumn)
		}

		date, err := ParseSaleDate(row[dateIdx])
		if err != nil {
			return nil, withRow(err, rowNum, opts.DateColumn)
		}

		street := row[streetIdx]
		rec := Record{
			Row:             rowNum,
			Price:           price,
			DateOfSale:      date,
			Year:            date.Year(),
			Month:           int(date.Month()),
			StreetName:      street,
			StreetNameLower: strings.ToLower(street),
			Raw:             rawCells(columns[:len(tbl.Header)], row),
		}

		h, matched := streets[rec.StreetNameLower]
		if matched {
			ds.Stats.Matched++
		}
		if matched && h.Known {
			rec.TreeHeightValue = h.Value
			known = append(known, h.Value)
		} else {
			rec.TreeHeightImputed = true
		}
		ds.Records = append(ds.Records, rec)
	}

	median, ok := Median(known)
	if !ok {
		if opts.EmptyMedian != EmptyMedianZero {
			return nil, &EmptyDatasetError{Reason: "no sale has a known tree height"}
		}
		zap.L().Warn("property: no known tree heights, filling with zero",
			zap.Int("rows", len(ds.Records)),
		)
		median = 0
	}
	ds.MedianTreeHeight = median

	for i := range ds.Records {
		if ds.Records[i].TreeHeightImputed {
			ds.Records[i].TreeHeightValue = median
			ds.Stats.Imputed++
		}
	}
	ds.Stats.Rows = len(ds.Records)
	ds.Stats.Known = len(known)

	zap.L().Info("property: preprocessed sales",
		zap.Int("rows", ds.Stats.Rows),
		zap.Int("matched_streets", ds.Stats.Matched),
		zap.Int("known_heights", ds.Stats.Known),
		zap.Int("imputed", ds.Stats.Imputed),
		zap.Float64("median_tree_height", median),
	)
	return ds, nil
}

// withRow attaches row context to a cell parse error.
func withRow(err error, row int, column string) error {
	var pe *PriceParseError
	if errors.As(err, &pe) {
		pe.Row, pe.Column = row, column
		return pe
	}
	var de *DateParseError
	if errors.As(err, &de) {
		de.Row, de.Column = row, column
		return de
	}
	return eris.Wrapf(err, "property: row %d column %q", row, column)
}

func renamedColumns(header []string, dateColumn string) []string {
	cols := trimmed(header)
	for i, c := range cols {
		if c == dateColumn {
			cols[i] = ColDateOfSale
		}
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for _, c := range []string{ColPrice, ColYear, ColMonth, ColStreetNameLower, ColTreeHeightValue} {
		if !have[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

func rawCells(header, row []string) map[string]string {
	raw := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(row) {
			raw[col] = row[i]
		}
	}
	return raw
}

func trimmed(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}
