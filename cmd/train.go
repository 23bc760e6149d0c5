package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/treeprice/internal/config"
	"github.com/sells-group/treeprice/internal/evaluate"
	"github.com/sells-group/treeprice/internal/features"
	"github.com/sells-group/treeprice/internal/model"
	"github.com/sells-group/treeprice/internal/property"
	"github.com/sells-group/treeprice/internal/regress"
	"github.com/sells-group/treeprice/internal/report"
	"github.com/sells-group/treeprice/internal/store"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and evaluate the price models",
	Long:  "Loads the tree catalog and sale register, fits linear and random forest models on a seeded split, cross-validates the forest and saves it as the model artifact.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := applyDataFlags(cmd, cfg); err != nil {
			return err
		}
		if err := applyModelFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		noExplore, _ := cmd.Flags().GetBool("no-explore")
		accuracy, _ := cmd.Flags().GetBool("accuracy")

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		_, err = runTrain(ctx, cfg, st, trainOptions{
			Format:   format,
			Explore:  !noExplore,
			Accuracy: accuracy,
		}, os.Stdout)
		return err
	},
}

// trainOptions control what a training run prints.
type trainOptions struct {
	Format   string
	Explore  bool
	Accuracy bool
}

// trainOutcome is everything a finished training run produced.
type trainOutcome struct {
	Run         *model.Run
	Summary     *report.Summary
	Accuracy    *report.AccuracyReport
	Predictions []model.Prediction
}

// runTrain records a run in st, trains and saves the model, then prints the
// summary to out. A failure after the run is created marks it failed.
func runTrain(ctx context.Context, c *config.Config, st store.Store, opts trainOptions, out io.Writer) (*trainOutcome, error) {
	start := time.Now()

	run, err := st.CreateRun(ctx, runInput(c))
	if err != nil {
		return nil, eris.Wrap(err, "train: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("training run started",
		zap.String("trees", c.Data.TreesPath),
		zap.String("properties", c.Data.PropertiesPath),
	)

	fail := func(err error) (*trainOutcome, error) {
		if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			log.Warn("train: mark run failed", zap.Error(ferr))
		}
		return nil, err
	}

	outcome, result, err := train(ctx, c, run.ID, opts)
	if err != nil {
		return fail(err)
	}

	// predictions go first so a complete run always has them
	saved, err := st.SavePredictions(ctx, run.ID, outcome.Predictions)
	if err != nil {
		return fail(eris.Wrap(err, "train: save predictions"))
	}
	result.DurationMs = time.Since(start).Milliseconds()
	if err := st.CompleteRun(ctx, run.ID, result); err != nil {
		return fail(eris.Wrap(err, "train: complete run"))
	}
	if outcome.Run, err = st.GetRun(ctx, run.ID); err != nil {
		return fail(eris.Wrap(err, "train: reload run"))
	}

	log.Info("training run complete",
		zap.Float64("forest_r2", result.Forest.R2),
		zap.Float64("cv_r2_mean", result.CVMean),
		zap.Int64("predictions", saved),
		zap.Int64("duration_ms", result.DurationMs),
	)

	if err := printTrain(out, opts, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

func train(ctx context.Context, c *config.Config, runID string, opts trainOptions) (*trainOutcome, *model.RunResult, error) {
	ds, err := loadDataset(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	m, err := features.Select(ds, c.Model.Features, c.Model.Target)
	if err != nil {
		return nil, nil, err
	}

	res, err := evaluate.TrainEvaluate(ctx, m, evaluate.Options{
		TestSize: c.Model.TestSize,
		Seed:     c.Model.Seed,
		Trees:    c.Model.Estimators,
		Folds:    c.Model.Folds,
		Workers:  c.Model.Workers,
	})
	if err != nil {
		return nil, nil, err
	}

	acc, err := report.Accuracy(res.Model, m, res.Split.Test)
	if err != nil {
		return nil, nil, err
	}

	if err := regress.SaveArtifact(c.Model.Path, &regress.Artifact{
		RunID:    runID,
		Features: res.Features,
		Target:   res.Target,
		Forest:   res.Model,
	}); err != nil {
		return nil, nil, err
	}

	summary := report.NewSummary(res)
	summary.RunID = runID
	summary.ModelPath = c.Model.Path
	if opts.Explore {
		summary.Exploration = report.Explore(ds, report.DefaultBins)
	}

	return &trainOutcome{
		Summary:     summary,
		Accuracy:    acc,
		Predictions: heldOut(ds, acc),
	}, runResult(ds, res, c.Model.Path), nil
}

func printTrain(out io.Writer, opts trainOptions, o *trainOutcome) error {
	if err := report.Write(out, opts.Format, o.Summary); err != nil {
		return err
	}
	if opts.Format != report.FormatText {
		return nil
	}
	if opts.Accuracy {
		_, _ = fmt.Fprintln(out)
		if err := report.WriteAccuracy(out, o.Accuracy); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(out, "\nModel saved as '%s'\n", o.Summary.ModelPath)
	return nil
}

// heldOut converts the accuracy points to stored predictions keyed by
// source row.
func heldOut(ds *property.Dataset, acc *report.AccuracyReport) []model.Prediction {
	preds := make([]model.Prediction, len(acc.Points))
	for i, p := range acc.Points {
		preds[i] = model.Prediction{
			Row:       ds.Records[p.Row].Row,
			Actual:    p.Actual,
			Predicted: p.Predicted,
		}
	}
	return preds
}

func runResult(ds *property.Dataset, res *evaluate.Result, modelPath string) *model.RunResult {
	imps := make([]model.FeatureImportance, len(res.Importances))
	for i, imp := range res.Importances {
		imps[i] = model.FeatureImportance{Feature: imp.Feature, Importance: imp.Value}
	}
	return &model.RunResult{
		Rows:             ds.Stats.Rows,
		TrainRows:        len(res.Split.Train),
		TestRows:         len(res.Split.Test),
		ImputedHeights:   ds.Stats.Imputed,
		MedianTreeHeight: ds.MedianTreeHeight,
		Linear:           res.Linear,
		Forest:           res.Forest,
		CVScores:         res.CVScores,
		CVMean:           res.CVMean,
		Importances:      imps,
		ModelPath:        modelPath,
	}
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("trees-path", "", "tree catalog JSON (overrides data.trees_path)")
	cmd.Flags().String("properties-path", "", "sale register CSV or XLSX (overrides data.properties_path)")
	cmd.Flags().String("delimiter", "", "CSV field delimiter (overrides data.delimiter)")
	cmd.Flags().String("encoding", "", "CSV text encoding (overrides data.encoding)")
	cmd.Flags().String("sheet", "", "worksheet name for XLSX registers (overrides data.sheet_name)")
}

// applyDataFlags copies explicitly set data flags over the config.
func applyDataFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"trees-path":      &c.Data.TreesPath,
		"properties-path": &c.Data.PropertiesPath,
		"delimiter":       &c.Data.Delimiter,
		"encoding":        &c.Data.Encoding,
		"sheet":           &c.Data.SheetName,
	} {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return eris.Wrapf(err, "flag --%s", name)
		}
		*dst = v
	}
	return nil
}

// applyModelFlags copies explicitly set model flags over the config.
func applyModelFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("model-path") {
		c.Model.Path, err = flags.GetString("model-path")
	}
	if err == nil && flags.Changed("seed") {
		c.Model.Seed, err = flags.GetInt64("seed")
	}
	if err == nil && flags.Changed("test-size") {
		c.Model.TestSize, err = flags.GetFloat64("test-size")
	}
	if err == nil && flags.Changed("estimators") {
		c.Model.Estimators, err = flags.GetInt("estimators")
	}
	if err == nil && flags.Changed("folds") {
		c.Model.Folds, err = flags.GetInt("folds")
	}
	if err == nil && flags.Changed("workers") {
		c.Model.Workers, err = flags.GetInt("workers")
	}
	if err == nil && flags.Changed("features") {
		c.Model.Features, err = flags.GetStringSlice("features")
	}
	if err == nil && flags.Changed("target") {
		c.Model.Target, err = flags.GetString("target")
	}
	return eris.Wrap(err, "train: read flags")
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("model-path", "", "where to write the model artifact (overrides model.path)")
	cmd.Flags().Int64("seed", 42, "random seed for the split and the forest")
	cmd.Flags().Float64("test-size", 0.2, "fraction of rows held out for testing")
	cmd.Flags().Int("estimators", 100, "number of trees in the forest")
	cmd.Flags().Int("folds", 5, "cross-validation folds")
	cmd.Flags().Int("workers", 0, "parallel tree builders (0 = GOMAXPROCS)")
	cmd.Flags().StringSlice("features", nil, "feature columns (default Tree_Height_Value,Year,Month)")
	cmd.Flags().String("target", "", "target column (default Price)")
}

func init() {
	addDataFlags(trainCmd)
	addModelFlags(trainCmd)
	trainCmd.Flags().String("format", "text", "output format: text, json or yaml")
	trainCmd.Flags().Bool("no-explore", false, "skip the exploratory statistics")
	trainCmd.Flags().Bool("accuracy", false, "print held-out actual vs predicted prices")
	rootCmd.AddCommand(trainCmd)
}
