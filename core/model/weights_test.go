package model

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/piven/pkg/errors"
)

func sampleWeights() *ModelWeights {
	return &ModelWeights{
		ModelType: "PivenMLP",
		Version:   "1",
		Hidden: []LayerWeights{{
			Name: "dense_0", Inputs: 2, Units: 3, Activation: "relu",
			Kernel: []float64{1, 2, 3, 4, 5, 6}, Bias: []float64{0, 0, 0},
		}},
		Interval: LayerWeights{
			Name: "pi", Inputs: 3, Units: 2, Activation: "linear",
			Kernel: []float64{1, 1, 1, 1, 1, 1}, Bias: []float64{3, -3},
		},
		Value: LayerWeights{
			Name: "v", Inputs: 3, Units: 1, Activation: "sigmoid",
			Kernel: []float64{0.1, 0.2, 0.3}, Bias: []float64{0},
		},
		Hyperparameters: map[string]interface{}{"lambda": 15.0},
		IsFitted:        true,
	}
}

func TestModelWeightsFileRoundTrip(t *testing.T) {
	mw := sampleWeights()
	path := filepath.Join(t.TempDir(), "piven_model.json")
	require.NoError(t, mw.WriteFile(path))

	loaded, err := ReadWeightsFile(path)
	require.NoError(t, err)
	assert.Equal(t, mw.Hash(), loaded.Hash())
	assert.Equal(t, mw.Interval.Bias, loaded.Interval.Bias)
}

func TestModelWeightsValidate(t *testing.T) {
	require.NoError(t, sampleWeights().Validate())

	mw := sampleWeights()
	mw.Interval.Inputs = 4
	mw.Interval.Kernel = make([]float64, 8)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(mw.Validate(), &dimErr))

	mw = sampleWeights()
	mw.Hidden[0].Bias = []float64{0}
	var modelErr *errors.ModelError
	assert.True(t, errors.As(mw.Validate(), &modelErr))

	mw = sampleWeights()
	mw.IsFitted = false
	var valErr *errors.ValidationError
	assert.True(t, errors.As(mw.Validate(), &valErr))
}

func TestLayerWeightsValidateErrorCarriesStack(t *testing.T) {
	lw := sampleWeights().Hidden[0]
	lw.Bias = []float64{0}
	err := lw.validate()
	require.Error(t, err)
	assert.Equal(t, `layer "dense_0": bias has 1 values, want 3`, err.Error())
	assert.Contains(t, fmt.Sprintf("%+v", err), "weights.go")

	lw = sampleWeights().Value
	lw.Units = 0
	assert.Contains(t, lw.validate().Error(), "invalid shape 3x0")
}

func TestModelWeightsHashChangesWithParameters(t *testing.T) {
	a := sampleWeights()
	b := sampleWeights()
	assert.Equal(t, a.Hash(), b.Hash())

	b.Value.Bias[0] = 0.5
	assert.NotEqual(t, a.Hash(), b.Hash())
}
