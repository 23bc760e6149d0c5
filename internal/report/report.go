// Package report renders training results and exploratory statistics as
// console text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/treeprice/internal/evaluate"
	"github.com/sells-group/treeprice/internal/regress"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ParseFormat normalizes a format name and rejects unknown ones.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want text, json or yaml)", s)
	}
}

// Summary is the serializable outcome of a training run.
type Summary struct {
	RunID       string                `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Features    []string              `json:"features" yaml:"features"`
	Target      string                `json:"target" yaml:"target"`
	TrainRows   int                   `json:"train_rows" yaml:"train_rows"`
	TestRows    int                   `json:"test_rows" yaml:"test_rows"`
	Linear      regress.Metrics       `json:"linear" yaml:"linear"`
	Forest      regress.Metrics       `json:"random_forest" yaml:"random_forest"`
	CVScores    []float64             `json:"cv_r2_scores" yaml:"cv_r2_scores"`
	CVMean      float64               `json:"cv_r2_mean" yaml:"cv_r2_mean"`
	Importances []evaluate.Importance `json:"feature_importances" yaml:"feature_importances"`
	ModelPath   string                `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	Exploration *Exploration          `json:"exploration,omitempty" yaml:"exploration,omitempty"`
}

// NewSummary copies the reportable parts of res.
func NewSummary(res *evaluate.Result) *Summary {
	return &Summary{
		Features:    res.Features,
		Target:      res.Target,
		TrainRows:   len(res.Split.Train),
		TestRows:    len(res.Split.Test),
		Linear:      res.Linear,
		Forest:      res.Forest,
		CVScores:    res.CVScores,
		CVMean:      res.CVMean,
		Importances: res.Importances,
	}
}

// Write renders s in the given format.
func Write(w io.Writer, format string, s *Summary) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(s), "report: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: encode yaml")
	default:
		return WriteText(w, s)
	}
}

// WriteText prints the console metrics report followed by the ranked
// feature importances and, when present, the exploration summary.
func WriteText(w io.Writer, s *Summary) error {
	var b strings.Builder
	b.WriteString("Linear Regression Performance:\n")
	writeMetrics(&b, s.Linear)
	b.WriteString("\n")
	b.WriteString("Random Forest Performance:\n")
	writeMetrics(&b, s.Forest)
	fmt.Fprintf(&b, "Cross-Validation R^2 Scores: %s\n", FormatScores(s.CVScores))
	fmt.Fprintf(&b, "Average CV R^2 Score: %.2f\n", s.CVMean)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "report: write text")
	}

	if len(s.Importances) > 0 {
		if _, err := io.WriteString(w, "\nFeature Importances:\n"); err != nil {
			return eris.Wrap(err, "report: write text")
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, imp := range s.Importances {
			fmt.Fprintf(tw, "  %s\t%.4f\n", imp.Feature, imp.Value)
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "report: write text")
		}
	}

	if s.Exploration != nil {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return eris.Wrap(err, "report: write text")
		}
		return WriteExploration(w, s.Exploration)
	}
	return nil
}

func writeMetrics(b *strings.Builder, m regress.Metrics) {
	fmt.Fprintf(b, "MAE: %.2f, RMSE: %.2f, R^2: %.2f\n", m.MAE, m.RMSE, m.R2)
}

// FormatScores renders scores like a printed numpy array, e.g.
// "[0.81234567 0.79]".
func FormatScores(scores []float64) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = strconv.FormatFloat(s, 'f', -1, 64)
		if dot := strings.IndexByte(parts[i], '.'); dot >= 0 && len(parts[i])-dot-1 > 8 {
			parts[i] = strconv.FormatFloat(s, 'f', 8, 64)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
