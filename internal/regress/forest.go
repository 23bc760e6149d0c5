package regress

import (
	"math"
	"math/rand"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Node is one node of a fitted regression tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
	Samples   int     `json:"n"`
}

// Tree is a CART regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// check reports the first node that would send predict out of range or back
// up the tree. Children always follow their parent in Nodes.
func (t *Tree) check(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return eris.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= nFeatures {
			return eris.Errorf("node %d splits on feature %d of %d", i, n.Feature, nFeatures)
		}
		for _, c := range []int{n.Left, n.Right} {
			if c <= i || c >= len(t.Nodes) {
				return eris.Errorf("node %d has child %d outside (%d, %d)", i, c, i, len(t.Nodes))
			}
		}
	}
	return nil
}

// RandomForest is a bagged ensemble of regression trees grown on squared
// error. Tree i draws its bootstrap sample and feature subsets from a seed
// derived from Seed, so a fit is reproducible for any worker count.
type RandomForest struct {
	NEstimators     int   `json:"n_estimators"`
	Seed            int64 `json:"seed"`
	MaxDepth        int   `json:"max_depth"`         // 0 = unlimited
	MinSamplesSplit int   `json:"min_samples_split"` // default 2
	MinSamplesLeaf  int   `json:"min_samples_leaf"`  // default 1
	MaxFeatures     int   `json:"max_features"`      // 0 = all features
	Workers         int   `json:"-"`                 // 0 = GOMAXPROCS

	NFeatures   int       `json:"n_features"`
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"feature_importances"`
}

// NewRandomForest returns an unfitted forest with the usual defaults.
func NewRandomForest(nEstimators int, seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:     nEstimators,
		Seed:            seed,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// Fit grows NEstimators trees in parallel on bootstrap samples of (X, y).
func (rf *RandomForest) Fit(X [][]float64, y []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return &ModelFitError{Model: "random forest", Err: err}
	}
	if rf.NEstimators < 1 {
		return &ModelFitError{Model: "random forest", Err: eris.Errorf("n_estimators must be at least 1, got %d", rf.NEstimators)}
	}

	params := treeParams{
		maxDepth:    rf.MaxDepth,
		minSplit:    max(rf.MinSamplesSplit, 2),
		minLeaf:     max(rf.MinSamplesLeaf, 1),
		maxFeatures: rf.MaxFeatures,
	}
	if params.maxFeatures <= 0 || params.maxFeatures > p {
		params.maxFeatures = p
	}

	seeds := make([]int64, rf.NEstimators)
	master := rand.New(rand.NewSource(rf.Seed))
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]Tree, rf.NEstimators)
	importances := make([][]float64, rf.NEstimators)

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seeds[i]))
			trees[i], importances[i] = growTree(X, y, p, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &ModelFitError{Model: "random forest", Err: err}
	}

	rf.NFeatures = p
	rf.Trees = trees
	rf.Importances = averageImportances(importances, p)
	return nil
}

// Predict averages the trees' predictions for each row.
func (rf *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, eris.New("regress: random forest is not fitted")
	}
	if err := checkRows(X, rf.NFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		var sum float64
		for t := range rf.Trees {
			sum += rf.Trees[t].predict(x)
		}
		out[i] = sum / float64(len(rf.Trees))
	}
	return out, nil
}

// FeatureImportances returns the mean normalized decrease in squared error
// attributed to each feature. The values sum to 1 unless no tree split.
func (rf *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), rf.Importances...)
}

// Clone returns an unfitted forest with the same hyperparameters.
func (rf *RandomForest) Clone() *RandomForest {
	return &RandomForest{
		NEstimators:     rf.NEstimators,
		Seed:            rf.Seed,
		MaxDepth:        rf.MaxDepth,
		MinSamplesSplit: rf.MinSamplesSplit,
		MinSamplesLeaf:  rf.MinSamplesLeaf,
		MaxFeatures:     rf.MaxFeatures,
		Workers:         rf.Workers,
	}
}

type treeParams struct {
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
}

type treeBuilder struct {
	X          [][]float64
	y          []float64
	params     treeParams
	rng        *rand.Rand
	nodes      []Node
	importance []float64
	features   []int
}

func growTree(X [][]float64, y []float64, p int, params treeParams, rng *rand.Rand) (Tree, []float64) {
	n := len(y)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.Intn(n)
	}
	sort.Ints(sample)

	b := &treeBuilder{
		X:          X,
		y:          y,
		params:     params,
		rng:        rng,
		importance: make([]float64, p),
		features:   make([]int, p),
	}
	for i := range b.features {
		b.features[i] = i
	}
	b.build(sample, 0)
	return Tree{Nodes: b.nodes}, b.importance
}

func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.nodes)

	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	b.nodes = append(b.nodes, Node{Feature: -1, Value: mean, Samples: len(idx)})

	sse := sumSq - sum*sum/n
	if len(idx) < b.params.minSplit ||
		len(idx) < 2*b.params.minLeaf ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth) ||
		sse <= 1e-12*math.Max(1, sumSq) {
		return id
	}

	s, ok := b.bestSplit(idx, sum, sumSq)
	if !ok {
		return id
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, len(idx)-s.nLeft)
	for _, i := range idx {
		if b.X[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[s.feature] += sse - s.sse

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = Node{
		Feature:   s.feature,
		Threshold: s.threshold,
		Left:      l,
		Right:     r,
		Value:     mean,
		Samples:   len(idx),
	}
	return id
}

type split struct {
	feature   int
	threshold float64
	sse       float64 // left + right squared error
	nLeft     int
}

func (b *treeBuilder) bestSplit(idx []int, sum, sumSq float64) (split, bool) {
	candidates := b.features
	if b.params.maxFeatures < len(b.features) {
		b.rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:b.params.maxFeatures]
	}

	best := split{sse: math.Inf(1)}
	found := false
	order := make([]int, len(idx))
	n := len(idx)

	for _, f := range candidates {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.X[order[a]][f] < b.X[order[c]][f]
		})

		var lSum, lSq float64
		for k := 0; k < n-1; k++ {
			yk := b.y[order[k]]
			lSum += yk
			lSq += yk * yk

			v, next := b.X[order[k]][f], b.X[order[k+1]][f]
			if v == next {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < b.params.minLeaf || nr < b.params.minLeaf {
				continue
			}
			rSum, rSq := sum-lSum, sumSq-lSq
			total := (lSq - lSum*lSum/float64(nl)) + (rSq - rSum*rSum/float64(nr))
			if total < best.sse {
				thr := v + (next-v)/2
				if thr >= next {
					thr = v
				}
				best = split{feature: f, threshold: thr, sse: total, nLeft: nl}
				found = true
			}
		}
	}
	return best, found
}

func averageImportances(perTree [][]float64, p int) []float64 {
	out := make([]float64, p)
	for _, imp := range perTree {
		var total float64
		for _, v := range imp {
			total += v
		}
		if total <= 0 {
			continue
		}
		for j, v := range imp {
			out[j] += v / total
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
