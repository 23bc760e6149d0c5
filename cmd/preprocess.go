package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/treeprice/internal/property"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Write the sale register enriched with tree heights as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyDataFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ds, err := loadDataset(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" || output == "-" {
			return writeDataset(os.Stdout, ds)
		}

		f, err := os.Create(output)
		if err != nil {
			return eris.Wrap(err, "preprocess: create output")
		}
		if err := writeDataset(f, ds); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "preprocess: close output")
		}
		zap.L().Info("wrote enriched sales", zap.String("path", output), zap.Int("rows", len(ds.Records)))
		return nil
	},
}

// writeDataset writes ds as CSV with the renamed and derived columns.
func writeDataset(w io.Writer, ds *property.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns); err != nil {
		return eris.Wrap(err, "preprocess: write header")
	}
	row := make([]string, len(ds.Columns))
	for i := range ds.Records {
		rec := &ds.Records[i]
		for j, col := range ds.Columns {
			row[j] = cell(rec, col)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "preprocess: write row %d", rec.Row)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "preprocess: flush")
}

func cell(rec *property.Record, col string) string {
	switch col {
	case property.ColPrice:
		return strconv.FormatFloat(rec.Price, 'f', -1, 64)
	case property.ColDateOfSale:
		return property.FormatSaleDate(rec.DateOfSale)
	case property.ColYear:
		return strconv.Itoa(rec.Year)
	case property.ColMonth:
		return strconv.Itoa(rec.Month)
	case property.ColStreetNameLower:
		return rec.StreetNameLower
	case property.ColTreeHeightValue:
		return strconv.FormatFloat(rec.TreeHeightValue, 'f', -1, 64)
	default:
		return rec.Raw[col]
	}
}

func init() {
	addDataFlags(preprocessCmd)
	preprocessCmd.Flags().StringP("output", "o", "", "output CSV path (default stdout)")
	rootCmd.AddCommand(preprocessCmd)
}
