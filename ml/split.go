package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// Split is a train/test partition of a feature matrix.
type Split struct {
	TrainX [][]float64
	TrainY []float64
	TestX  [][]float64
	TestY  []float64
}

// TrainTestSplit shuffles row indices with the given seed and holds out
// ceil(n*testRatio) rows for testing.
func TrainTestSplit(features [][]float64, targets []float64, testRatio float64, seed int64) (*Split, error) {
	if err := validateInput(features, targets); err != nil {
		return nil, err
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, fmt.Errorf("test ratio %.2f must be in (0, 1)", testRatio)
	}
	n := len(targets)
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest >= n {
		return nil, fmt.Errorf("test ratio %.2f leaves no training rows for %d samples", testRatio, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	s := &Split{
		TrainX: make([][]float64, 0, n-nTest),
		TrainY: make([]float64, 0, n-nTest),
		TestX:  make([][]float64, 0, nTest),
		TestY:  make([]float64, 0, nTest),
	}
	for i, idx := range perm {
		if i < nTest {
			s.TestX = append(s.TestX, features[idx])
			s.TestY = append(s.TestY, targets[idx])
		} else {
			s.TrainX = append(s.TrainX, features[idx])
			s.TrainY = append(s.TrainY, targets[idx])
		}
	}
	return s, nil
}

// Fold holds the row indices of one cross-validation round.
type Fold struct {
	Train []int
	Test  []int
}

// KFold cuts 0..n-1 into k contiguous test blocks without shuffling; the
// first n%k blocks get one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k must be at least 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", n, k)
	}
	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size
		fold := Fold{
			Train: make([]int, 0, n-size),
			Test:  make([]int, 0, size),
		}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Test = append(fold.Test, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds[f] = fold
		start = end
	}
	return folds, nil
}

// Subset selects rows by index.
func Subset(features [][]float64, targets []float64, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = features[j]
		y[i] = targets[j]
	}
	return x, y
}
