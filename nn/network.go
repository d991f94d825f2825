package nn

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

const (
	// ModelType identifies networks in serialised weights.
	ModelType = "PivenMLP"

	weightsVersion = "1"
)

// NetworkConfig describes a Piven multilayer perceptron.
type NetworkConfig struct {
	InputDim int

	// Units lists the hidden layer widths. Each hidden layer uses ReLU.
	Units []int

	// Dropout lists per-layer dropout rates. It is either empty or has the
	// same length as Units; a zero rate adds no dropout layer.
	Dropout []float64

	BiasInitHigh float64
	BiasInitLow  float64

	Seed uint64
}

// Network is a stack of hidden Dense layers followed by a PivenHead.
type Network struct {
	inputDim int
	hidden   []*Dense
	layers   []Layer // hidden layers interleaved with dropout, in order
	head     *PivenHead
}

// NewNetwork builds a network with freshly initialised weights. The same
// config and seed always produce the same weights.
func NewNetwork(cfg NetworkConfig) (*Network, error) {
	if cfg.InputDim <= 0 {
		return nil, errors.NewValidationError("input_dim", "must be positive", cfg.InputDim)
	}
	if len(cfg.Dropout) != 0 && len(cfg.Dropout) != len(cfg.Units) {
		return nil, errors.NewValidationError("dropout_rate",
			fmt.Sprintf("must have one rate per dense layer (%d)", len(cfg.Units)), cfg.Dropout)
	}

	src := NewSource(cfg.Seed)
	net := &Network{inputDim: cfg.InputDim}

	in := cfg.InputDim
	for i, units := range cfg.Units {
		d, err := NewDense(DenseConfig{
			Name:       fmt.Sprintf("dense_%d", i),
			Inputs:     in,
			Units:      units,
			Activation: ReLU,
		}, src)
		if err != nil {
			return nil, err
		}
		net.hidden = append(net.hidden, d)
		net.layers = append(net.layers, d)

		if len(cfg.Dropout) > 0 {
			rate := cfg.Dropout[i]
			if rate < 0 || rate >= 1 {
				return nil, errors.NewValidationError("dropout_rate", "must be in [0, 1)", rate)
			}
			if rate > 0 {
				net.layers = append(net.layers, NewDropout(rate, src))
			}
		}
		in = units
	}

	headCfg := DefaultPivenHeadConfig(in)
	if cfg.BiasInitHigh != 0 || cfg.BiasInitLow != 0 {
		headCfg.BiasInitHigh = cfg.BiasInitHigh
		headCfg.BiasInitLow = cfg.BiasInitLow
	}
	head, err := NewPivenHead(headCfg, src)
	if err != nil {
		return nil, err
	}
	net.head = head
	return net, nil
}

// InputDim returns the number of input features.
func (n *Network) InputDim() int { return n.inputDim }

// Head returns the output layer.
func (n *Network) Head() *PivenHead { return n.head }

// Forward maps an n×InputDim batch to the n×3 head output.
func (n *Network) Forward(x *mat.Dense, training bool) *mat.Dense {
	h := x
	for _, l := range n.layers {
		h = l.Forward(h, training)
	}
	return n.head.Forward(h, training)
}

// Backward propagates ∂loss/∂output through the network, leaving the
// parameter gradients in place for an Optimizer.
func (n *Network) Backward(dOut *mat.Dense) {
	g := n.head.Backward(dOut)
	for i := len(n.layers) - 1; i >= 0; i-- {
		g = n.layers[i].Backward(g)
	}
}

// Parameters returns every trainable parameter, hidden layers first.
func (n *Network) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range n.layers {
		params = append(params, l.Parameters()...)
	}
	return append(params, n.head.Parameters()...)
}

// NumParameters returns the total number of scalar weights.
func (n *Network) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		total += len(p.Value)
	}
	return total
}

// Export serialises the network.
func (n *Network) Export(hyperparameters map[string]interface{}) *model.ModelWeights {
	mw := &model.ModelWeights{
		ModelType:       ModelType,
		Version:         weightsVersion,
		Interval:        n.head.interval.Export(),
		Value:           n.head.value.Export(),
		Hyperparameters: hyperparameters,
		IsFitted:        true,
	}

	dropout := map[int]float64{}
	hiddenIdx := -1
	for _, l := range n.layers {
		switch layer := l.(type) {
		case *Dense:
			hiddenIdx++
		case *Dropout:
			dropout[hiddenIdx] = layer.Rate()
		}
	}
	for i, d := range n.hidden {
		lw := d.Export()
		lw.Dropout = dropout[i]
		mw.Hidden = append(mw.Hidden, lw)
	}
	return mw
}

// NetworkFromWeights restores a network written by Export. seed drives the
// dropout masks if the restored network is trained further.
func NetworkFromWeights(mw *model.ModelWeights, seed uint64) (*Network, error) {
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	if mw.ModelType != ModelType {
		return nil, errors.NewValueError("NetworkFromWeights",
			fmt.Sprintf("unsupported model type %q", mw.ModelType))
	}

	src := NewSource(seed)
	net := &Network{inputDim: mw.Interval.Inputs}
	if len(mw.Hidden) > 0 {
		net.inputDim = mw.Hidden[0].Inputs
	}
	for _, lw := range mw.Hidden {
		d, err := DenseFromWeights(lw)
		if err != nil {
			return nil, err
		}
		net.hidden = append(net.hidden, d)
		net.layers = append(net.layers, d)
		if lw.Dropout > 0 {
			net.layers = append(net.layers, NewDropout(lw.Dropout, src))
		}
	}

	interval, err := DenseFromWeights(mw.Interval)
	if err != nil {
		return nil, err
	}
	value, err := DenseFromWeights(mw.Value)
	if err != nil {
		return nil, err
	}
	net.head = &PivenHead{interval: interval, value: value}
	return net, nil
}

// Summary returns a table with one row per layer and the parameter count.
func (n *Network) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-10s %-10s %s\n", "Layer", "Output", "Activation", "Params")
	row := func(name string, units int, act string, params int) {
		fmt.Fprintf(&b, "%-12s %-10s %-10s %d\n", name, fmt.Sprintf("(None, %d)", units), act, params)
	}
	for _, l := range n.layers {
		switch layer := l.(type) {
		case *Dense:
			row(layer.name, layer.units, layer.act.Name(), layer.inputs*layer.units+layer.units)
		case *Dropout:
			fmt.Fprintf(&b, "%-12s %-10s %-10s %d\n", "dropout", fmt.Sprintf("rate=%.2f", layer.rate), "", 0)
		}
	}
	for _, d := range []*Dense{n.head.interval, n.head.value} {
		row(d.name, d.units, d.act.Name(), d.inputs*d.units+d.units)
	}
	fmt.Fprintf(&b, "Total params: %d\n", n.NumParameters())
	return b.String()
}
