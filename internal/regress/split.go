package regress

import (
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
)

// TrainTestSplit shuffles row indices 0..n-1 with a seeded permutation and
// assigns the first ceil(testSize*n) to the held-out partition and the rest
// to training. The same n, testSize and seed always give the same partition.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, eris.Errorf("regress: test size must be in (0, 1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, eris.Errorf("regress: %d rows cannot be split with test size %v", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// KFold partitions 0..n-1 into k contiguous folds without shuffling. The
// first n%k folds hold one extra row. Each returned slice is a test fold.
func KFold(n, k int) ([][]int, error) {
	if k < 2 {
		return nil, eris.Errorf("regress: k-fold needs at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, eris.Errorf("regress: cannot make %d folds from %d rows", k, n)
	}

	folds := make([][]int, k)
	start := 0
	for f := range folds {
		size := n / k
		if f < n%k {
			size++
		}
		fold := make([]int, size)
		for i := range fold {
			fold[i] = start + i
		}
		folds[f] = fold
		start += size
	}
	return folds, nil
}

// complement returns 0..n-1 minus the contiguous fold.
func complement(n int, fold []int) []int {
	in := make(map[int]bool, len(fold))
	for _, i := range fold {
		in[i] = true
	}
	out := make([]int, 0, n-len(fold))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

// CrossValScore fits a fresh estimator on each k-fold training set and
// returns the R² on the corresponding test fold.
func CrossValScore(newModel func() Regressor, X [][]float64, y []float64, k int) ([]float64, error) {
	if len(X) != len(y) {
		return nil, eris.Errorf("regress: feature rows (%d) and targets (%d) differ", len(X), len(y))
	}
	folds, err := KFold(len(y), k)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for f, test := range folds {
		train := complement(len(y), test)
		model := newModel()
		if err := model.Fit(pick(X, train), pickY(y, train)); err != nil {
			return nil, err
		}
		pred, err := model.Predict(pick(X, test))
		if err != nil {
			return nil, eris.Wrapf(err, "regress: predict fold %d", f)
		}
		score, err := R2(pickY(y, test), pred)
		if err != nil {
			return nil, eris.Wrapf(err, "regress: score fold %d", f)
		}
		scores[f] = score
	}
	return scores, nil
}

func pick(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func pickY(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
