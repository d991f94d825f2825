package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/pkg/errors"
)

// sumSquares is 0.5·Σout², whose gradient is out itself.
func sumSquares(out *mat.Dense) float64 {
	var s float64
	raw := out.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols] {
			s += 0.5 * v * v
		}
	}
	return s
}

func testInput() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		0.5, -1.2, 0.3,
		1.0, 0.4, -0.7,
		-0.2, 0.9, 1.5,
		0.0, -0.3, 0.8,
	})
}

func TestNetworkBackwardMatchesFiniteDifferences(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{InputDim: 3, Units: []int{5, 4}, Seed: 7})
	require.NoError(t, err)
	x := testInput()

	out := net.Forward(x, true)
	net.Backward(out)

	const h = 1e-6
	for _, p := range net.Parameters() {
		analytic := append([]float64(nil), p.Grad...)
		for i := range p.Value {
			orig := p.Value[i]
			p.Value[i] = orig + h
			plus := sumSquares(net.Forward(x, false))
			p.Value[i] = orig - h
			minus := sumSquares(net.Forward(x, false))
			p.Value[i] = orig

			numeric := (plus - minus) / (2 * h)
			assert.InDelta(t, numeric, analytic[i], 1e-5, "%s[%d]", p.Name, i)
		}
	}
}

func TestNetworkOutputShapeAndGate(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{InputDim: 3, Units: []int{8}, Seed: 1})
	require.NoError(t, err)

	out := net.Forward(testInput(), false)
	r, c := out.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	for i := 0; i < r; i++ {
		v := out.At(i, ColValue)
		assert.True(t, v > 0 && v < 1, "gate %v outside (0,1)", v)
	}
}

func TestPivenHeadBiasInitialisation(t *testing.T) {
	head, err := NewPivenHead(PivenHeadConfig{Inputs: 2, BiasInitHigh: 2.5, BiasInitLow: -1.5}, NewSource(3))
	require.NoError(t, err)

	// a zero input isolates the bias
	out := head.Forward(mat.NewDense(1, 2, nil), false)
	assert.Equal(t, 2.5, out.At(0, ColUpper))
	assert.Equal(t, -1.5, out.At(0, ColLower))
	assert.Equal(t, 0.5, out.At(0, ColValue))
}

func TestNetworkDeterministicFromSeed(t *testing.T) {
	cfg := NetworkConfig{InputDim: 3, Units: []int{6}, Dropout: []float64{0.2}, Seed: 42}
	a, err := NewNetwork(cfg)
	require.NoError(t, err)
	b, err := NewNetwork(cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Export(nil).Hash(), b.Export(nil).Hash())

	cfg.Seed = 43
	c, err := NewNetwork(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Export(nil).Hash(), c.Export(nil).Hash())
}

func TestNetworkExportRoundTrip(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{InputDim: 3, Units: []int{4, 3}, Dropout: []float64{0.1, 0}, Seed: 9})
	require.NoError(t, err)

	mw := net.Export(map[string]interface{}{"lambda": 15.0})
	assert.Equal(t, 0.1, mw.Hidden[0].Dropout)
	assert.Zero(t, mw.Hidden[1].Dropout)

	restored, err := NetworkFromWeights(mw, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.InputDim())
	assert.Equal(t, net.NumParameters(), restored.NumParameters())

	x := testInput()
	assert.True(t, mat.Equal(net.Forward(x, false), restored.Forward(x, false)))
}

func TestNetworkWithoutHiddenLayers(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{InputDim: 2, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 2*2+2+2*1+1, net.NumParameters())

	restored, err := NetworkFromWeights(net.Export(nil), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.InputDim())
}

func TestNetworkConfigValidation(t *testing.T) {
	var valErr *errors.ValidationError

	_, err := NewNetwork(NetworkConfig{InputDim: 0})
	assert.True(t, errors.As(err, &valErr))

	_, err = NewNetwork(NetworkConfig{InputDim: 2, Units: []int{4, 4}, Dropout: []float64{0.1}})
	assert.True(t, errors.As(err, &valErr))

	_, err = NewNetwork(NetworkConfig{InputDim: 2, Units: []int{4}, Dropout: []float64{1.0}})
	assert.True(t, errors.As(err, &valErr))

	_, err = NewNetwork(NetworkConfig{InputDim: 2, Units: []int{0}})
	assert.True(t, errors.As(err, &valErr))
}

func TestDropoutTrainingOnly(t *testing.T) {
	d := NewDropout(0.5, NewSource(11))
	x := mat.NewDense(50, 4, nil)
	for i := 0; i < 50; i++ {
		for j := 0; j < 4; j++ {
			x.Set(i, j, 1)
		}
	}

	assert.Same(t, x, d.Forward(x, false))

	out := d.Forward(x, true)
	zeros, kept := 0, 0
	raw := out.RawMatrix().Data
	for _, v := range raw {
		switch v {
		case 0:
			zeros++
		case 2:
			kept++
		default:
			t.Fatalf("unexpected value %v", v)
		}
	}
	assert.Equal(t, len(raw), zeros+kept)
	assert.Greater(t, zeros, 50)
	assert.Greater(t, kept, 50)

	// the gradient flows only through kept units
	g := d.Backward(x)
	assert.True(t, mat.Equal(g, out))
}

func TestActivations(t *testing.T) {
	assert.Equal(t, 0.0, ReLU.Apply(-2))
	assert.Equal(t, 3.0, ReLU.Apply(3))
	assert.Equal(t, 0.0, ReLU.Derivative(0))
	assert.InDelta(t, 0.25, Sigmoid.Derivative(Sigmoid.Apply(0)), 1e-12)
	assert.InDelta(t, math.Tanh(0.5), Tanh.Apply(0.5), 1e-12)

	for _, a := range []Activation{Linear, ReLU, Sigmoid, Tanh} {
		got, err := ActivationByName(a.Name())
		require.NoError(t, err)
		assert.Equal(t, a.Name(), got.Name())
	}
	_, err := ActivationByName("softmax")
	assert.Error(t, err)
}

func TestAdamMinimisesQuadratic(t *testing.T) {
	p := &Parameter{Name: "w", Value: []float64{5, -3}, Grad: make([]float64, 2)}
	opt := NewAdam(AdamConfig{LR: 0.1})

	for i := 0; i < 1000; i++ {
		for j, v := range p.Value {
			p.Grad[j] = 2 * (v - 1)
		}
		opt.Step([]*Parameter{p})
	}
	assert.InDelta(t, 1, p.Value[0], 5e-2)
	assert.InDelta(t, 1, p.Value[1], 5e-2)
}

func TestAdamFirstStepIsLearningRate(t *testing.T) {
	p := &Parameter{Value: []float64{0}, Grad: []float64{123}}
	opt := NewAdam(AdamConfig{LR: 0.01})
	opt.Step([]*Parameter{p})
	// bias correction makes the first step ±lr regardless of scale
	assert.InDelta(t, -0.01, p.Value[0], 1e-8)
}

func TestNewAdamDefaults(t *testing.T) {
	opt := NewAdam(AdamConfig{})
	assert.Equal(t, 0.001, opt.LearningRate())
	assert.Equal(t, 0.9, opt.cfg.Beta1)
	assert.Equal(t, 0.999, opt.cfg.Beta2)
	assert.Equal(t, 1e-7, opt.cfg.Eps)
}

func TestAdamKeepsMomentsAcrossParameterViews(t *testing.T) {
	value, grad := []float64{0}, []float64{1}
	opt := NewAdam(AdamConfig{LR: 1})

	// each step sees a fresh Parameter with the same name
	opt.Step([]*Parameter{{Name: "w", Value: value, Grad: grad}})
	assert.InDelta(t, -1, value[0], 1e-8)

	grad[0] = -1
	opt.Step([]*Parameter{{Name: "w", Value: value, Grad: grad}})
	// m2 = -0.01, v2 = 0.001999; bias-corrected step is +0.01/0.19
	assert.InDelta(t, -1+0.01/0.19, value[0], 1e-6)
	assert.Len(t, opt.m, 1)
}

func TestAdamStateStableOverNetworkSteps(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{InputDim: 2, Seed: 1})
	require.NoError(t, err)
	opt := NewAdam(AdamConfig{LR: 0.01})

	for i := 0; i < 100; i++ {
		for _, p := range net.Parameters() {
			for j := range p.Grad {
				p.Grad[j] = 0.1
			}
		}
		opt.Step(net.Parameters())
	}
	params := net.Parameters()
	assert.Len(t, opt.m, len(params))
	assert.Len(t, opt.v, len(params))
	assert.Same(t, params[0], net.Parameters()[0])
}

func TestSGDMomentumAcrossParameterViews(t *testing.T) {
	value := []float64{0}
	sgd := NewSGD(0.1, 0.9, 0)
	for i := 0; i < 2; i++ {
		sgd.Step([]*Parameter{{Name: "w", Value: value, Grad: []float64{1}}})
	}
	assert.InDelta(t, -0.29, value[0], 1e-12)
	assert.Len(t, sgd.velocity, 1)
}

func TestOptimizerClipNorm(t *testing.T) {
	p := &Parameter{Value: []float64{0, 0}, Grad: []float64{30, 40}}
	sgd := NewSGD(1, 0, 5)
	norm := sgd.Step([]*Parameter{p})

	assert.Equal(t, 50.0, norm)
	assert.InDelta(t, -3, p.Value[0], 1e-12)
	assert.InDelta(t, -4, p.Value[1], 1e-12)
}

func TestSGDMomentum(t *testing.T) {
	p := &Parameter{Value: []float64{0}, Grad: []float64{1}}
	sgd := NewSGD(0.1, 0.9, 0)
	sgd.Step([]*Parameter{p})
	sgd.Step([]*Parameter{p})
	// v1 = -0.1, v2 = 0.9*-0.1 - 0.1 = -0.19
	assert.InDelta(t, -0.29, p.Value[0], 1e-12)

	sgd.SetLearningRate(0.5)
	assert.Equal(t, 0.5, sgd.LearningRate())
}

func TestSummaryListsLayers(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{InputDim: 3, Units: []int{4}, Dropout: []float64{0.1}, Seed: 1})
	require.NoError(t, err)
	s := net.Summary()
	for _, want := range []string{"dense_0", "dropout", "pi", "v", "Total params"} {
		assert.Contains(t, s, want)
	}
}
