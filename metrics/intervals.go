package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/piven/loss"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

func checkSlices(op string, first []float64, rest ...[]float64) (int, error) {
	n := len(first)
	if n == 0 {
		return 0, errors.NewValueError(op, "empty input")
	}
	for _, s := range rest {
		if len(s) != n {
			return 0, errors.NewDimensionError(op, n, len(s), 0)
		}
	}
	return n, nil
}

// Coverage returns the fraction of targets with low <= y <= high.
func Coverage(y, low, high []float64) (float64, error) {
	n, err := checkSlices("Coverage", y, low, high)
	if err != nil {
		return 0, err
	}
	var inside int
	for i := range y {
		if low[i] <= y[i] && y[i] <= high[i] {
			inside++
		}
	}
	return float64(inside) / float64(n), nil
}

// PIWidth returns the mean width high-low of the intervals.
func PIWidth(low, high []float64) (float64, error) {
	n, err := checkSlices("PIWidth", low, high)
	if err != nil {
		return 0, err
	}
	return (floats.Sum(high) - floats.Sum(low)) / float64(n), nil
}

// PivenLoss evaluates the Piven objective on predictions that are already
// combined into a point estimate, with beta fixed at 0.5.
func PivenLoss(y, pred, low, high []float64, lambda, soften, alpha float64) (float64, error) {
	if _, err := checkSlices("PivenLoss", y, pred, low, high); err != nil {
		return 0, err
	}
	obj := loss.Piven{Lambda: lambda, Soften: soften, Alpha: alpha, Beta: 0.5}
	value, terms, err := obj.Score(y, pred, low, high)
	if err != nil {
		return 0, err
	}
	if terms.PICPHard == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("captured_width", "no target strictly inside its interval", terms.MPIWCaptured))
	}
	return value, nil
}
