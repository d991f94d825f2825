package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Output columns of PivenHead.
const (
	ColUpper = 0
	ColLower = 1
	ColValue = 2
)

// PivenHead is the Piven output layer. It combines two projections of the
// same hidden representation:
//
//	interval: Dense(2, linear)  -> [upper, lower]
//	value:    Dense(1, sigmoid) -> v
//
// and concatenates them into one n×3 output.
type PivenHead struct {
	interval *Dense
	value    *Dense
}

// PivenHeadConfig configures NewPivenHead.
type PivenHeadConfig struct {
	Inputs int

	// BiasInitHigh and BiasInitLow initialise the interval bias so that
	// training starts from a wide interval around zero.
	BiasInitHigh float64
	BiasInitLow  float64

	// KernelStddev is the standard deviation of both projections' kernels.
	KernelStddev float64
}

// DefaultPivenHeadConfig returns the head configuration used by MLPModel.
func DefaultPivenHeadConfig(inputs int) PivenHeadConfig {
	return PivenHeadConfig{
		Inputs:       inputs,
		BiasInitHigh: 3.0,
		BiasInitLow:  -3.0,
		KernelStddev: 0.3,
	}
}

// NewPivenHead creates the output layer.
func NewPivenHead(cfg PivenHeadConfig, src rand.Source) (*PivenHead, error) {
	if cfg.KernelStddev <= 0 {
		cfg.KernelStddev = 0.3
	}
	interval, err := NewDense(DenseConfig{
		Name:       "pi",
		Inputs:     cfg.Inputs,
		Units:      2,
		Activation: Linear,
		KernelInit: RandomNormal(cfg.KernelStddev),
		BiasInit:   Constant(cfg.BiasInitHigh, cfg.BiasInitLow),
	}, src)
	if err != nil {
		return nil, err
	}
	value, err := NewDense(DenseConfig{
		Name:       "v",
		Inputs:     cfg.Inputs,
		Units:      1,
		Activation: Sigmoid,
		KernelInit: RandomNormal(cfg.KernelStddev),
	}, src)
	if err != nil {
		return nil, err
	}
	return &PivenHead{interval: interval, value: value}, nil
}

// Interval returns the [upper, lower] projection.
func (h *PivenHead) Interval() *Dense { return h.interval }

// Value returns the gate projection.
func (h *PivenHead) Value() *Dense { return h.value }

// Forward implements Layer.
func (h *PivenHead) Forward(x *mat.Dense, training bool) *mat.Dense {
	pi := h.interval.Forward(x, training)
	v := h.value.Forward(x, training)

	n, _ := x.Dims()
	out := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		out.Set(i, ColUpper, pi.At(i, 0))
		out.Set(i, ColLower, pi.At(i, 1))
		out.Set(i, ColValue, v.At(i, 0))
	}
	return out
}

// Backward implements Layer. The input gradient is the sum of both
// projections' input gradients.
func (h *PivenHead) Backward(dOut *mat.Dense) *mat.Dense {
	n, _ := dOut.Dims()
	dPI := dOut.Slice(0, n, ColUpper, ColLower+1).(*mat.Dense)
	dV := dOut.Slice(0, n, ColValue, ColValue+1).(*mat.Dense)

	dX := h.interval.Backward(dPI)
	dX.Add(dX, h.value.Backward(dV))
	return dX
}

// Parameters implements Layer.
func (h *PivenHead) Parameters() []*Parameter {
	return append(h.interval.Parameters(), h.value.Parameters()...)
}

// PointPrediction combines one output row into value*upper + (1-value)*lower.
func PointPrediction(upper, lower, value float64) float64 {
	return value*upper + (1-value)*lower
}
