package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

// Dense is a fully connected layer: a = act(x·W + b).
type Dense struct {
	name   string
	inputs int
	units  int
	act    Activation

	kernel *mat.Dense // inputs×units
	bias   *mat.VecDense

	dKernel *mat.Dense
	dBias   *mat.VecDense

	// views over kernel/bias and their gradients, built once
	params []*Parameter

	// cached by a training Forward
	input  *mat.Dense
	output *mat.Dense
}

// DenseConfig configures NewDense. Nil initialisers default to GlorotUniform
// for the kernel and Zeros for the bias.
type DenseConfig struct {
	Name       string
	Inputs     int
	Units      int
	Activation Activation
	KernelInit Initializer
	BiasInit   Initializer
}

// NewDense creates a Dense layer with freshly initialised weights.
func NewDense(cfg DenseConfig, src rand.Source) (*Dense, error) {
	if cfg.Inputs <= 0 {
		return nil, errors.NewValidationError("inputs", "must be positive", cfg.Inputs)
	}
	if cfg.Units <= 0 {
		return nil, errors.NewValidationError("units", "must be positive", cfg.Units)
	}
	if cfg.Activation == nil {
		cfg.Activation = Linear
	}
	if cfg.KernelInit == nil {
		cfg.KernelInit = GlorotUniform()
	}
	if cfg.BiasInit == nil {
		cfg.BiasInit = Zeros()
	}

	d := newDense(cfg.Name, cfg.Inputs, cfg.Units, cfg.Activation)
	cfg.KernelInit(d.kernel.RawMatrix().Data, cfg.Inputs, cfg.Units, src)
	cfg.BiasInit(d.bias.RawVector().Data, cfg.Inputs, cfg.Units, src)
	return d, nil
}

func newDense(name string, inputs, units int, act Activation) *Dense {
	d := &Dense{
		name:    name,
		inputs:  inputs,
		units:   units,
		act:     act,
		kernel:  mat.NewDense(inputs, units, nil),
		bias:    mat.NewVecDense(units, nil),
		dKernel: mat.NewDense(inputs, units, nil),
		dBias:   mat.NewVecDense(units, nil),
	}
	d.params = []*Parameter{
		{Name: name + "/kernel", Value: d.kernel.RawMatrix().Data, Grad: d.dKernel.RawMatrix().Data},
		{Name: name + "/bias", Value: d.bias.RawVector().Data, Grad: d.dBias.RawVector().Data},
	}
	return d
}

// Name returns the layer name.
func (d *Dense) Name() string { return d.name }

// Inputs returns the input width.
func (d *Dense) Inputs() int { return d.inputs }

// Units returns the output width.
func (d *Dense) Units() int { return d.units }

// Kernel returns the weight matrix. The returned matrix aliases the layer.
func (d *Dense) Kernel() *mat.Dense { return d.kernel }

// Bias returns the bias vector. The returned vector aliases the layer.
func (d *Dense) Bias() *mat.VecDense { return d.bias }

// Forward implements Layer.
func (d *Dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, d.units, nil)
	out.Mul(x, d.kernel)

	bias := d.bias.RawVector().Data
	raw := out.RawMatrix()
	for i := 0; i < n; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+d.units]
		for j := range row {
			row[j] = d.act.Apply(row[j] + bias[j])
		}
	}

	if training {
		d.input = x
		d.output = out
	}
	return out
}

// Backward implements Layer.
func (d *Dense) Backward(dOut *mat.Dense) *mat.Dense {
	if d.input == nil {
		panic("nn: Dense.Backward called without a training Forward")
	}
	n, _ := dOut.Dims()

	dZ := mat.NewDense(n, d.units, nil)
	dZ.Apply(func(i, j int, v float64) float64 {
		return v * d.act.Derivative(d.output.At(i, j))
	}, dOut)

	d.dKernel.Mul(d.input.T(), dZ)
	for j := 0; j < d.units; j++ {
		d.dBias.SetVec(j, mat.Sum(dZ.ColView(j)))
	}

	dX := mat.NewDense(n, d.inputs, nil)
	dX.Mul(dZ, d.kernel.T())
	return dX
}

// Parameters implements Layer. The same Parameter values are returned on
// every call.
func (d *Dense) Parameters() []*Parameter {
	return d.params
}

// Export returns the serialised form of the layer.
func (d *Dense) Export() model.LayerWeights {
	kernel := make([]float64, d.inputs*d.units)
	copy(kernel, d.kernel.RawMatrix().Data)
	bias := make([]float64, d.units)
	copy(bias, d.bias.RawVector().Data)
	return model.LayerWeights{
		Name:       d.name,
		Inputs:     d.inputs,
		Units:      d.units,
		Activation: d.act.Name(),
		Kernel:     kernel,
		Bias:       bias,
	}
}

// DenseFromWeights rebuilds a layer exported with Export.
func DenseFromWeights(lw model.LayerWeights) (*Dense, error) {
	act, err := ActivationByName(lw.Activation)
	if err != nil {
		return nil, err
	}
	if len(lw.Kernel) != lw.Inputs*lw.Units || len(lw.Bias) != lw.Units {
		return nil, errors.NewDimensionError("DenseFromWeights", lw.Inputs*lw.Units, len(lw.Kernel), 1)
	}
	d := newDense(lw.Name, lw.Inputs, lw.Units, act)
	copy(d.kernel.RawMatrix().Data, lw.Kernel)
	copy(d.bias.RawVector().Data, lw.Bias)
	return d, nil
}
