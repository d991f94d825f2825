package loss

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/nn"
)

// PointMSE is the mean squared error of the combined point prediction
// v·U + (1−v)·L, ignoring interval quality. It equals Piven with Beta=0 and
// is useful as a warm-up objective.
type PointMSE struct{}

// Name implements Objective.
func (PointMSE) Name() string { return "point_mse" }

// Evaluate implements Objective.
func (PointMSE) Evaluate(y []float64, out *mat.Dense) (Result, error) {
	n, err := checkBatch("PointMSE.Evaluate", y, out)
	if err != nil {
		return Result{}, err
	}
	fn := float64(n)
	grad := mat.NewDense(n, 3, nil)
	var sq float64
	for i := 0; i < n; i++ {
		u, l, v := out.At(i, nn.ColUpper), out.At(i, nn.ColLower), out.At(i, nn.ColValue)
		d := nn.PointPrediction(u, l, v) - y[i]
		sq += d * d
		r := 2 * d / fn
		grad.Set(i, nn.ColUpper, r*v)
		grad.Set(i, nn.ColLower, r*(1-v))
		grad.Set(i, nn.ColValue, r*(u-l))
	}
	return Result{Loss: sq / fn, Grad: grad, Terms: Terms{ValueLoss: sq / fn}}, nil
}
