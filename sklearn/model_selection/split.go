// Package model_selection provides data splitters and cross-validation
// helpers: KFold, train/test splitting, cross_val_predict and
// cross_val_score.
package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Fold holds the row indices of one cross-validation split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits samples into NSplits consecutive folds. With Shuffle the
// indices are permuted first with a PCG source seeded by RandomState.
type KFold struct {
	NSplits     int
	Shuffle     bool
	RandomState uint64
}

// NewKFold creates a new k-fold splitter.
func NewKFold(nSplits int, shuffle bool, randomState uint64) *KFold {
	return &KFold{
		NSplits:     nSplits,
		Shuffle:     shuffle,
		RandomState: randomState,
	}
}

// GetNSplits returns the number of splits.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for nSamples rows. The first
// nSamples % NSplits folds get one extra test sample. Train indices are in
// ascending order.
func (kf *KFold) Split(nSamples int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > nSamples {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := permutation(nSamples, kf.Shuffle, kf.RandomState)

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	inTest := make([]bool, nSamples)

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := make([]int, testSize)
		copy(test, indices[current:current+testSize])

		clear(inTest)
		for _, idx := range test {
			inTest[idx] = true
		}
		train := make([]int, 0, nSamples-testSize)
		for idx := 0; idx < nSamples; idx++ {
			if !inTest[idx] {
				train = append(train, idx)
			}
		}

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

func permutation(n int, shuffle bool, seed uint64) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		r := rand.New(rand.NewPCG(seed, seed))
		r.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	return indices
}

// TrainTestSplitIndices permutes [0, n) with the given seed and returns the
// last n - ceil(testSize*n) entries as train and the first ceil(testSize*n)
// as test.
func TrainTestSplitIndices(n int, testSize float64, randomState uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain < 1 || nTest < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"the resulting train set or test set would be empty")
	}
	perm := permutation(n, true, randomState)
	return perm[nTest:], perm[:nTest], nil
}

// TrainTestSplit splits a matrix and its target vector.
func TrainTestSplit(X mat.Matrix, y *mat.VecDense, testSize float64, randomState uint64) (
	XTrain, XTest *mat.Dense, yTrain, yTest *mat.VecDense, err error,
) {
	rows, _ := X.Dims()
	if y.Len() != rows {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", rows, y.Len(), 0)
	}
	train, test, err := TrainTestSplitIndices(rows, testSize, randomState)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = TakeRows(X, y, train)
	XTest, yTest = TakeRows(X, y, test)
	return XTrain, XTest, yTrain, yTest, nil
}

// TakeRows copies the given rows of X and y. y may be nil.
func TakeRows(X mat.Matrix, y *mat.VecDense, idx []int) (*mat.Dense, *mat.VecDense) {
	_, cols := X.Dims()
	Xs := mat.NewDense(len(idx), cols, nil)
	var ys *mat.VecDense
	if y != nil {
		ys = mat.NewVecDense(len(idx), nil)
	}
	for k, i := range idx {
		for j := 0; j < cols; j++ {
			Xs.Set(k, j, X.At(i, j))
		}
		if ys != nil {
			ys.SetVec(k, y.AtVec(i))
		}
	}
	return Xs, ys
}
