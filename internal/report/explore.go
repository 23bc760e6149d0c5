package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/treeprice/internal/property"
)

// DefaultBins is the price histogram resolution.
const DefaultBins = 50

// CorrelationColumns are the columns compared in the correlation matrix.
var CorrelationColumns = []string{
	property.ColPrice, property.ColTreeHeightValue, property.ColYear, property.ColMonth,
}

// Coefficient is a correlation value. Undefined correlations (a constant
// column) are NaN and encode as JSON null.
type Coefficient float64

func (c Coefficient) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(c)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(c))
}

// Bin is one histogram bucket covering [Lower, Upper). The last bin also
// includes Upper.
type Bin struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
	Count int     `json:"count" yaml:"count"`
}

// Distribution summarizes one numeric column.
type Distribution struct {
	Count     int     `json:"count" yaml:"count"`
	Min       float64 `json:"min" yaml:"min"`
	Q1        float64 `json:"q1" yaml:"q1"`
	Median    float64 `json:"median" yaml:"median"`
	Q3        float64 `json:"q3" yaml:"q3"`
	Max       float64 `json:"max" yaml:"max"`
	Mean      float64 `json:"mean" yaml:"mean"`
	StdDev    float64 `json:"std" yaml:"std"`
	Histogram []Bin   `json:"histogram,omitempty" yaml:"histogram,omitempty"`
}

// HeightGroup is the price distribution of sales sharing one tree height.
type HeightGroup struct {
	TreeHeight float64      `json:"tree_height" yaml:"tree_height"`
	Price      Distribution `json:"price" yaml:"price"`
}

// Correlation is a symmetric Pearson correlation matrix.
type Correlation struct {
	Columns []string        `json:"columns" yaml:"columns"`
	Matrix  [][]Coefficient `json:"matrix" yaml:"matrix"`
}

// Exploration is the textual stand-in for the price histogram, the
// price-by-height box plot and the correlation heatmap.
type Exploration struct {
	Rows         int           `json:"rows" yaml:"rows"`
	Imputed      int           `json:"imputed_heights" yaml:"imputed_heights"`
	MedianHeight float64       `json:"median_tree_height" yaml:"median_tree_height"`
	Price        Distribution  `json:"price" yaml:"price"`
	ByTreeHeight []HeightGroup `json:"price_by_tree_height" yaml:"price_by_tree_height"`
	Correlation  Correlation   `json:"correlation" yaml:"correlation"`
}

// Explore computes summary statistics over a preprocessed dataset. bins <= 0
// uses DefaultBins.
func Explore(ds *property.Dataset, bins int) *Exploration {
	if bins <= 0 {
		bins = DefaultBins
	}

	cols := make([][]float64, len(CorrelationColumns))
	for i := range cols {
		cols[i] = make([]float64, len(ds.Records))
	}
	groups := make(map[float64][]float64)
	imputed := 0
	for r, rec := range ds.Records {
		cols[0][r] = rec.Price
		cols[1][r] = rec.TreeHeightValue
		cols[2][r] = float64(rec.Year)
		cols[3][r] = float64(rec.Month)
		groups[rec.TreeHeightValue] = append(groups[rec.TreeHeightValue], rec.Price)
		if rec.TreeHeightImputed {
			imputed++
		}
	}

	e := &Exploration{
		Rows:         len(ds.Records),
		Imputed:      imputed,
		MedianHeight: ds.MedianTreeHeight,
		Price:        Describe(cols[0]),
		Correlation:  Correlation{Columns: CorrelationColumns, Matrix: correlate(cols)},
	}
	e.Price.Histogram = Histogram(cols[0], bins)

	heights := make([]float64, 0, len(groups))
	for h := range groups {
		heights = append(heights, h)
	}
	sort.Float64s(heights)
	for _, h := range heights {
		e.ByTreeHeight = append(e.ByTreeHeight, HeightGroup{TreeHeight: h, Price: Describe(groups[h])})
	}
	return e
}

// Describe returns count, quartiles, mean and sample standard deviation.
func Describe(xs []float64) Distribution {
	if len(xs) == 0 {
		return Distribution{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	median, _ := property.Median(sorted)

	d := Distribution{
		Count:  len(sorted),
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: median,
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
		Mean:   stat.Mean(sorted, nil),
	}
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}
	return d
}

// Histogram counts xs into n equal-width bins spanning [min, max]. A
// constant column is centered in a unit-wide range.
func Histogram(xs []float64, n int) []Bin {
	if len(xs) == 0 || n <= 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(n)
	out := make([]Bin, n)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[n-1].Upper = hi
	for _, x := range xs {
		i := int((x - lo) / width)
		if i >= n {
			i = n - 1
		}
		out[i].Count++
	}
	return out
}

func correlate(cols [][]float64) [][]Coefficient {
	out := make([][]Coefficient, len(cols))
	for i := range cols {
		out[i] = make([]Coefficient, len(cols))
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			c := math.NaN()
			if len(cols[i]) > 1 {
				c = stat.Correlation(cols[i], cols[j], nil)
			}
			if i == j && !math.IsNaN(c) {
				c = 1
			}
			out[i][j] = Coefficient(c)
			out[j][i] = Coefficient(c)
		}
	}
	return out
}

// WriteExploration prints the exploration as aligned console tables.
func WriteExploration(w io.Writer, e *Exploration) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p := e.Price
	fmt.Fprintf(tw, "Property Prices (%d sales, %d with imputed tree height %.2f):\n", e.Rows, e.Imputed, e.MedianHeight)
	fmt.Fprintf(tw, "  min\tq1\tmedian\tq3\tmax\tmean\tstd\n")
	fmt.Fprintf(tw, "  %.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", p.Min, p.Q1, p.Median, p.Q3, p.Max, p.Mean, p.StdDev)

	fmt.Fprintf(tw, "\nProperty Prices by Tree Height Value:\n")
	fmt.Fprintf(tw, "  height\tcount\tmin\tmedian\tmax\tmean\n")
	for _, g := range e.ByTreeHeight {
		fmt.Fprintf(tw, "  %g\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			g.TreeHeight, g.Price.Count, g.Price.Min, g.Price.Median, g.Price.Max, g.Price.Mean)
	}

	fmt.Fprintf(tw, "\nCorrelation Matrix:\n ")
	for _, c := range e.Correlation.Columns {
		fmt.Fprintf(tw, "\t%s", c)
	}
	fmt.Fprintln(tw)
	for i, row := range e.Correlation.Matrix {
		fmt.Fprintf(tw, "  %s", e.Correlation.Columns[i])
		for _, c := range row {
			fmt.Fprintf(tw, "\t%.2f", float64(c))
		}
		fmt.Fprintln(tw)
	}
	return eris.Wrap(tw.Flush(), "report: write exploration")
}
