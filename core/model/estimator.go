package model

import "gonum.org/v1/gonum/mat"

// Fitter is a model that can be trained on samples X and targets y.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor produces one point prediction per row of X.
type Predictor interface {
	Predict(X mat.Matrix) (*mat.VecDense, error)
}

// Intervals holds point predictions with their prediction interval bounds.
// All three vectors have one entry per sample.
type Intervals struct {
	Point *mat.VecDense
	Lower *mat.VecDense
	Upper *mat.VecDense
}

// Len returns the number of samples.
func (iv Intervals) Len() int {
	if iv.Point == nil {
		return 0
	}
	return iv.Point.Len()
}

// IntervalPredictor predicts a point estimate together with a lower and
// upper bound for every sample.
type IntervalPredictor interface {
	Predictor
	PredictIntervals(X mat.Matrix) (Intervals, error)
}

// IntervalRegressor is a trainable interval predictor.
type IntervalRegressor interface {
	Fitter
	IntervalPredictor
	IsFitted() bool
}
