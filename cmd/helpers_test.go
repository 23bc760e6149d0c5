//go:build !integration

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/treeprice/internal/config"
)

const testTrees = `{
  "Tall": {"Oak": {"Broadleaf": {"Main Street": 5, "High Street": null}}},
  "Short": {"Cherry": {"Blossom": {"Oak Avenue": "12", "Elm Road": 20}}}
}`

var testStreets = []struct {
	name   string
	height float64 // 0 for streets priced at the median
}{
	{"Main Street", 5},
	{"Oak Avenue", 12},
	{"Elm Road", 20},
	{"High Street", 0},
	{"Unlisted Lane", 0},
}

// writeFixtures writes a tree catalog and an n-row sale register to a temp
// dir and returns a config pointing at them with an in-memory store.
func writeFixtures(t *testing.T, n int) *config.Config {
	t.Helper()
	dir := t.TempDir()

	treesPath := filepath.Join(dir, "trees-data.json")
	require.NoError(t, os.WriteFile(treesPath, []byte(testTrees), 0o644))

	var b strings.Builder
	b.WriteString("Date of Sale (dd/mm/yyyy),Address,Street Name,Price\n")
	for i := 0; i < n; i++ {
		s := testStreets[i%len(testStreets)]
		h := s.height
		if h == 0 {
			h = 12 // median of 5, 12, 20
		}
		year := 2010 + i%8
		month := 1 + i%12
		price := 100000 + 10000*h + 1000*float64(year-2010) + float64(37*i)
		fmt.Fprintf(&b, "%02d/%02d/%d,%d %s,%s,%.2f\n", 1+i%28, month, year, i+1, s.name, s.name, price)
	}
	propsPath := filepath.Join(dir, "property-data.csv")
	require.NoError(t, os.WriteFile(propsPath, []byte(b.String()), 0o644))

	return &config.Config{
		Data: config.DataConfig{
			TreesPath:      treesPath,
			PropertiesPath: propsPath,
			Delimiter:      ",",
			Encoding:       "latin1",
			PriceColumn:    "Price",
			DateColumn:     "Date of Sale (dd/mm/yyyy)",
			StreetColumn:   "Street Name",
			EmptyMedian:    "error",
		},
		Model: config.ModelConfig{
			Path:       filepath.Join(dir, "property_price_model.json"),
			Seed:       42,
			TestSize:   0.2,
			Estimators: 10,
			Folds:      5,
			Workers:    2,
			Features:   []string{"Tree_Height_Value", "Year", "Month"},
			Target:     "Price",
		},
		Store: config.StoreConfig{Driver: "none"},
		Server: config.ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
	}
}
