package nn

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/piven/pkg/errors"
)

// Activation is an element-wise nonlinearity. Derivative is expressed in
// terms of the activation's output, which is what layers cache.
type Activation interface {
	Name() string
	Apply(z float64) float64
	Derivative(a float64) float64
}

type linear struct{}

func (linear) Name() string { return "linear" }
func (linear) Apply(z float64) float64 { return z }
func (linear) Derivative(_ float64) float64 { return 1 }

type relu struct{}

func (relu) Name() string { return "relu" }
func (relu) Apply(z float64) float64 {
	return math.Max(0, z)
}
func (relu) Derivative(a float64) float64 {
	if a > 0 {
		return 1
	}
	return 0
}

type sigmoid struct{}

func (sigmoid) Name() string { return "sigmoid" }
func (sigmoid) Apply(z float64) float64 { return errors.StableSigmoid(z) }
func (sigmoid) Derivative(a float64) float64 { return a * (1 - a) }

type tanh struct{}

func (tanh) Name() string { return "tanh" }
func (tanh) Apply(z float64) float64 { return math.Tanh(z) }
func (tanh) Derivative(a float64) float64 { return 1 - a*a }

var (
	Linear  Activation = linear{}
	ReLU    Activation = relu{}
	Sigmoid Activation = sigmoid{}
	Tanh    Activation = tanh{}
)

// ActivationByName resolves a name written by Activation.Name.
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "linear", "":
		return Linear, nil
	case "relu":
		return ReLU, nil
	case "sigmoid":
		return Sigmoid, nil
	case "tanh":
		return Tanh, nil
	}
	return nil, errors.NewValueError("ActivationByName", fmt.Sprintf("unknown activation %q", name))
}
