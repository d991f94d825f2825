package preprocessing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 10}, s.Mean, 1e-12)
	// population std of 1..4; constant column falls back to 1
	assert.InDeltaSlice(t, []float64{1.118033988749895, 1}, s.Scale, 1e-12)

	col := mat.Col(nil, 0, out)
	assert.InDelta(t, 0, col[0]+col[3], 1e-12)
	assert.InDelta(t, -1.3416407864998738, col[0], 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, 1, out))
}

func TestStandardScalerInverseRoundTrip(t *testing.T) {
	y := mat.NewVecDense(5, []float64{-3, 0.5, 7, 2, 11})
	s := NewStandardScalerDefault()
	scaled, err := s.FitTransform(y)
	require.NoError(t, err)

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(y, back, 1e-12))

	vec, err := s.InverseTransformVec(mat.NewVecDense(1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, s.Mean[0], vec.AtVec(0), 1e-12)
}

func TestStandardScalerWithoutCentering(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 4})
	s := NewStandardScaler(false, true)
	out, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out.At(0, 0), 1e-12)
	assert.InDelta(t, 4.0, out.At(1, 0), 1e-12)
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScalerDefault()

	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = s.Fit(&mat.Dense{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestStandardScalerGobPersistence(t *testing.T) {
	s := NewStandardScalerDefault()
	require.NoError(t, s.Fit(mat.NewDense(3, 1, []float64{1, 2, 6})))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(s, &buf))

	restored := &StandardScaler{}
	require.NoError(t, model.LoadModelFromReader(restored, &buf))
	assert.True(t, restored.IsFitted())
	assert.Equal(t, s.Mean, restored.Mean)
	assert.Equal(t, s.Scale, restored.Scale)
	assert.Equal(t, "StandardScaler(with_mean=true, with_std=true, n_features=1)", restored.String())
}
