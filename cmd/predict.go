package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/treeprice/internal/features"
	"github.com/sells-group/treeprice/internal/property"
	"github.com/sells-group/treeprice/internal/regress"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Price a sale with a saved model",
	Example: `  treeprice predict --tree-height 12.5 --year 2019 --month 6
  treeprice predict --value Tree_Height_Value=12.5,Year=2019,Month=6`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Model.Path
		if cmd.Flags().Changed("model-path") {
			path, _ = cmd.Flags().GetString("model-path")
		}
		art, err := regress.LoadArtifact(path)
		if err != nil {
			return err
		}

		values, err := predictValues(cmd)
		if err != nil {
			return err
		}
		price, err := predictOne(art, values)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Predicted %s: %.2f\n", art.Target, price)
		return nil
	},
}

// predictValues gathers feature values from the shorthand flags and --value.
func predictValues(cmd *cobra.Command) (map[string]float64, error) {
	flags := cmd.Flags()
	values := make(map[string]float64)

	if flags.Changed("tree-height") {
		v, _ := flags.GetFloat64("tree-height")
		values[property.ColTreeHeightValue] = v
	}
	if flags.Changed("year") {
		v, _ := flags.GetInt("year")
		values[property.ColYear] = float64(v)
	}
	if flags.Changed("month") {
		v, _ := flags.GetInt("month")
		values[property.ColMonth] = float64(v)
	}

	pairs, _ := flags.GetStringToString("value")
	for name, raw := range pairs {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "predict: value for %s", name)
		}
		values[name] = v
	}
	return values, nil
}

// predictOne prices a single row built from values in the artifact's feature order.
func predictOne(art *regress.Artifact, values map[string]float64) (float64, error) {
	row, err := features.Vector(art.Features, values)
	if err != nil {
		return 0, err
	}
	pred, err := art.Forest.Predict([][]float64{row})
	if err != nil {
		return 0, eris.Wrap(err, "predict")
	}
	return pred[0], nil
}

func init() {
	predictCmd.Flags().String("model-path", "", "model artifact (overrides model.path)")
	predictCmd.Flags().Float64("tree-height", 0, "Tree_Height_Value of the street")
	predictCmd.Flags().Int("year", 0, "year of sale")
	predictCmd.Flags().Int("month", 0, "month of sale (1-12)")
	predictCmd.Flags().StringToString("value", nil, "feature values as name=value pairs")
	rootCmd.AddCommand(predictCmd)
}
