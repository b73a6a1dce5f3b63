// Package ensemble provides tree boosting and model stacking regressors:
// a histogram-based gradient boosting regressor and a stacking regressor
// that trains a final estimator on out-of-fold base predictions.
package ensemble

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func init() {
	gob.Register(&HistGradientBoostingRegressor{})
	gob.Register(&StackingRegressor{})
}

// Early stopping modes.
const (
	EarlyStoppingAuto = "auto"
	EarlyStoppingOn   = "on"
	EarlyStoppingOff  = "off"
)

// earlyStoppingAutoThreshold is the sample count above which "auto" enables
// early stopping.
const earlyStoppingAutoThreshold = 10000

// HistGradientBoostingRegressor is a gradient boosted tree regressor on
// binned features with squared error loss. Trees are grown best-first and
// missing values are routed by a learned default direction.
type HistGradientBoostingRegressor struct {
	State *model.StateManager

	// Hyperparameters
	LearningRate       float64
	MaxIter            int
	MaxLeafNodes       int
	MaxDepth           int // 0 = unlimited
	MinSamplesLeaf     int
	L2Regularization   float64
	MaxBins            int
	EarlyStopping      string
	ValidationFraction float64
	NIterNoChange      int
	Tol                float64
	RandomState        uint64

	// Fitted state
	Baseline        float64
	Trees           []*Tree
	Mapper          *BinMapper
	NIter           int
	TrainScore      []float64
	ValidationScore []float64
}

// HGBOption configures a HistGradientBoostingRegressor.
type HGBOption func(*HistGradientBoostingRegressor)

// WithHGBLearningRate sets the shrinkage applied to every leaf (default 0.1).
func WithHGBLearningRate(lr float64) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.LearningRate = lr }
}

// WithHGBMaxIter sets the number of boosting iterations (default 100).
func WithHGBMaxIter(n int) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.MaxIter = n }
}

// WithHGBMaxLeafNodes sets the leaf budget of each tree (default 31).
func WithHGBMaxLeafNodes(n int) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.MaxLeafNodes = n }
}

// WithHGBMaxDepth limits tree depth; 0 means unlimited.
func WithHGBMaxDepth(d int) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.MaxDepth = d }
}

// WithHGBMinSamplesLeaf sets the minimum number of samples per leaf (default 20).
func WithHGBMinSamplesLeaf(n int) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.MinSamplesLeaf = n }
}

// WithHGBL2Regularization sets the L2 penalty on leaf values (default 0).
func WithHGBL2Regularization(l2 float64) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.L2Regularization = l2 }
}

// WithHGBMaxBins sets the number of bins for non-missing values (default 255).
func WithHGBMaxBins(n int) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.MaxBins = n }
}

// WithHGBEarlyStopping sets the early stopping mode: "auto", "on" or "off".
func WithHGBEarlyStopping(mode string) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.EarlyStopping = mode }
}

// WithHGBRandomState seeds the validation split used by early stopping.
func WithHGBRandomState(seed uint64) HGBOption {
	return func(h *HistGradientBoostingRegressor) { h.RandomState = seed }
}

// NewHistGradientBoostingRegressor creates a regressor with scikit-learn's
// defaults.
func NewHistGradientBoostingRegressor(options ...HGBOption) *HistGradientBoostingRegressor {
	h := &HistGradientBoostingRegressor{
		State:              model.NewStateManager(),
		LearningRate:       0.1,
		MaxIter:            100,
		MaxLeafNodes:       31,
		MinSamplesLeaf:     20,
		MaxBins:            255,
		EarlyStopping:      EarlyStoppingAuto,
		ValidationFraction: 0.1,
		NIterNoChange:      10,
		Tol:                1e-7,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *HistGradientBoostingRegressor) validate() error {
	switch {
	case h.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", h.LearningRate)
	case h.MaxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", h.MaxIter)
	case h.MaxLeafNodes < 2:
		return errors.NewValidationError("max_leaf_nodes", "must be at least 2", h.MaxLeafNodes)
	case h.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", h.MinSamplesLeaf)
	case h.L2Regularization < 0:
		return errors.NewValidationError("l2_regularization", "must be non-negative", h.L2Regularization)
	case h.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", h.MaxDepth)
	}
	switch h.EarlyStopping {
	case EarlyStoppingAuto, EarlyStoppingOn, EarlyStoppingOff:
	default:
		return errors.NewValidationError("early_stopping", "must be one of auto, on, off", h.EarlyStopping)
	}
	return nil
}

// Fit trains the booster. NaN feature values are allowed and handled by
// the missing-value bin; infinite values are rejected.
func (h *HistGradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "HistGradientBoostingRegressor.Fit")

	if err := h.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("HistGradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return errors.NewDimensionError("HistGradientBoostingRegressor.Fit", 1, yCols, 1)
	}
	if yRows != rows {
		return errors.NewDimensionError("HistGradientBoostingRegressor.Fit", rows, yRows, 0)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if math.IsInf(X.At(i, j), 0) {
				return errors.NewNumericalInstabilityError("HistGradientBoostingRegressor.Fit", []float64{X.At(i, j)}, 0)
			}
		}
	}
	target := mat.Col(nil, 0, y)
	if err := errors.CheckNumericalStability("HistGradientBoostingRegressor.Fit", target, 0); err != nil {
		return err
	}

	h.State.Reset()
	h.Trees = nil
	h.TrainScore = nil
	h.ValidationScore = nil

	trainIdx, valIdx := h.splitValidation(rows)
	earlyStopping := valIdx != nil

	Xtrain := takeRows(X, trainIdx)
	h.Mapper = NewBinMapper(h.MaxBins)
	if err := h.Mapper.Fit(Xtrain); err != nil {
		return err
	}
	binned, err := h.Mapper.Transform(Xtrain)
	if err != nil {
		return err
	}

	yTrain := make([]float64, len(trainIdx))
	for k, i := range trainIdx {
		yTrain[k] = target[i]
	}
	h.Baseline = stat.Mean(yTrain, nil)
	if err := errors.CheckScalar("HistGradientBoostingRegressor.Fit", h.Baseline, 0); err != nil {
		return err
	}

	raw := make([]float64, len(yTrain))
	for i := range raw {
		raw[i] = h.Baseline
	}
	grad := make([]float64, len(yTrain))
	samples := make([]int, len(yTrain))
	for i := range samples {
		samples[i] = i
	}

	var Xval *mat.Dense
	var yVal, rawVal []float64
	if earlyStopping {
		Xval = takeRows(X, valIdx)
		yVal = make([]float64, len(valIdx))
		rawVal = make([]float64, len(valIdx))
		for k, i := range valIdx {
			yVal[k] = target[i]
			rawVal[k] = h.Baseline
		}
		h.TrainScore = append(h.TrainScore, -halfSquaredError(yTrain, raw))
		h.ValidationScore = append(h.ValidationScore, -halfSquaredError(yVal, rawVal))
	}

	params := growParams{
		maxLeafNodes:   h.MaxLeafNodes,
		maxDepth:       h.MaxDepth,
		minSamplesLeaf: h.MinSamplesLeaf,
		l2:             h.L2Regularization,
		learningRate:   h.LearningRate,
	}

	row := make([]float64, cols)
	for iter := 0; iter < h.MaxIter; iter++ {
		for i := range grad {
			grad[i] = raw[i] - yTrain[i]
		}
		tree := newTreeGrower(binned, h.Mapper, grad, params).grow(samples, raw)
		h.Trees = append(h.Trees, tree)

		if !earlyStopping {
			continue
		}
		for k := range rawVal {
			mat.Row(row, k, Xval)
			rawVal[k] += tree.Predict(row)
		}
		h.TrainScore = append(h.TrainScore, -halfSquaredError(yTrain, raw))
		h.ValidationScore = append(h.ValidationScore, -halfSquaredError(yVal, rawVal))
		if err := errors.CheckScalar("HistGradientBoostingRegressor.Fit", h.ValidationScore[len(h.ValidationScore)-1], iter+1); err != nil {
			return err
		}
		if h.shouldStop(h.ValidationScore) {
			log.GetLoggerWithName("HistGradientBoostingRegressor").Debug("early stopping",
				log.IterationKey, iter+1,
				log.LossKey, -h.ValidationScore[len(h.ValidationScore)-1],
			)
			break
		}
	}
	h.NIter = len(h.Trees)

	h.State.SetDimensions(cols, rows)
	h.State.SetFitted()
	return nil
}

// splitValidation returns the training and validation row indices. The
// validation set is nil when early stopping is not active.
func (h *HistGradientBoostingRegressor) splitValidation(rows int) ([]int, []int) {
	perm := make([]int, rows)
	for i := range perm {
		perm[i] = i
	}
	active := h.EarlyStopping == EarlyStoppingOn ||
		(h.EarlyStopping == EarlyStoppingAuto && rows > earlyStoppingAutoThreshold)
	nVal := int(math.Ceil(h.ValidationFraction * float64(rows)))
	if !active || nVal < 1 || nVal >= rows {
		return perm, nil
	}

	r := rand.New(rand.NewPCG(h.RandomState, h.RandomState))
	r.Shuffle(rows, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm[nVal:], perm[:nVal]
}

// shouldStop reports whether none of the last NIterNoChange scores improved
// on the score just before them by more than Tol.
func (h *HistGradientBoostingRegressor) shouldStop(scores []float64) bool {
	n := h.NIterNoChange
	if len(scores) <= n {
		return false
	}
	reference := scores[len(scores)-n-1] + h.Tol
	for _, s := range scores[len(scores)-n:] {
		if s > reference {
			return false
		}
	}
	return true
}

func halfSquaredError(y, raw []float64) float64 {
	sum := 0.0
	for i := range y {
		d := raw[i] - y[i]
		sum += d * d
	}
	return sum / (2 * float64(len(y)))
}

// takeRows copies the given rows of X into a new dense matrix.
func takeRows(X mat.Matrix, idx []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for k, i := range idx {
		for j := 0; j < cols; j++ {
			out.Set(k, j, X.At(i, j))
		}
	}
	return out
}

// Predict returns the baseline plus the sum of every tree's leaf value.
func (h *HistGradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := h.State.RequireFitted("HistGradientBoostingRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := h.State.RequireFeatures("HistGradientBoostingRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		v := h.Baseline
		for _, t := range h.Trees {
			v += t.Predict(row)
		}
		out.SetVec(i, v)
	}
	return out, nil
}

// IsFitted returns whether the model has been fitted.
func (h *HistGradientBoostingRegressor) IsFitted() bool { return h.State.IsFitted() }

// Clone returns an unfitted regressor with the same hyperparameters.
func (h *HistGradientBoostingRegressor) Clone() model.Regressor {
	c := NewHistGradientBoostingRegressor()
	c.LearningRate = h.LearningRate
	c.MaxIter = h.MaxIter
	c.MaxLeafNodes = h.MaxLeafNodes
	c.MaxDepth = h.MaxDepth
	c.MinSamplesLeaf = h.MinSamplesLeaf
	c.L2Regularization = h.L2Regularization
	c.MaxBins = h.MaxBins
	c.EarlyStopping = h.EarlyStopping
	c.ValidationFraction = h.ValidationFraction
	c.NIterNoChange = h.NIterNoChange
	c.Tol = h.Tol
	c.RandomState = h.RandomState
	return c
}

// GetParams returns the model's hyperparameters.
func (h *HistGradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate":       h.LearningRate,
		"max_iter":            h.MaxIter,
		"max_leaf_nodes":      h.MaxLeafNodes,
		"max_depth":           h.MaxDepth,
		"min_samples_leaf":    h.MinSamplesLeaf,
		"l2_regularization":   h.L2Regularization,
		"max_bins":            h.MaxBins,
		"early_stopping":      h.EarlyStopping,
		"validation_fraction": h.ValidationFraction,
		"n_iter_no_change":    h.NIterNoChange,
		"tol":                 h.Tol,
		"random_state":        h.RandomState,
	}
}

func (h *HistGradientBoostingRegressor) String() string {
	return fmt.Sprintf("HistGradientBoostingRegressor(max_iter=%d, learning_rate=%g, random_state=%d)",
		h.MaxIter, h.LearningRate, h.RandomState)
}
