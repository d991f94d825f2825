package errors

import (
	"math"
)

// CheckScalar returns a NumericalInstabilityError when value is NaN or Inf.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// CheckMatrix scans a matrix and reports the first non-finite values found.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols, iteration int) error {
	var unstable []float64
	for i := 0; i < rows && len(unstable) == 0; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				unstable = append(unstable, v)
				if len(unstable) >= 10 {
					break
				}
			}
		}
	}
	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable, iteration)
	}
	return nil
}

// ClipGradients rescales all gradients in place so that their joint L2 norm
// does not exceed maxNorm, and returns the joint norm before clipping. A
// non-positive maxNorm disables clipping.
func ClipGradients(maxNorm float64, gradients ...[]float64) float64 {
	var sq float64
	for _, g := range gradients {
		for _, v := range g {
			sq += v * v
		}
	}
	norm := math.Sqrt(sq)

	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / norm
		for _, g := range gradients {
			for i := range g {
				g[i] *= scale
			}
		}
	}
	return norm
}

// StableSigmoid computes 1/(1+exp(-x)) without overflowing for large |x|.
func StableSigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
