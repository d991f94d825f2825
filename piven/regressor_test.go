package piven

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/loss"
	"github.com/YuminosukeSato/piven/nn"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

func TestRegressorFitReducesLoss(t *testing.T) {
	X, y := linearData(200, 0.1, 1)
	logger := testLogger(t)
	r := NewRegressor(smallBuild(3),
		WithEpochs(40),
		WithBatchSize(32),
		WithOptimizer(nn.AdamConfig{LR: 1e-2}),
		WithSeed(5),
		WithLogger(logger),
	)
	require.NoError(t, r.Fit(X, y))

	h := r.History()
	require.Equal(t, 40, h.Len())
	first := h.Metrics[MetricLoss][0]
	last, ok := h.Last(MetricLoss)
	require.True(t, ok)
	assert.Less(t, last, first)
	_, hasVal := h.Last(MetricValLoss)
	assert.False(t, hasVal)

	assert.True(t, logger.ContainsMessage("Training started"))
	assert.True(t, logger.ContainsMessage("Training finished"))
}

func TestRegressorPredictIntervals(t *testing.T) {
	X, y := linearData(100, 0.1, 2)
	r := NewRegressor(smallBuild(1), WithEpochs(5), WithLogger(testLogger(t)))
	require.NoError(t, r.Fit(X, y))

	iv, err := r.PredictIntervals(X)
	require.NoError(t, err)
	require.Equal(t, 100, iv.Len())

	out := r.Network().Forward(X, false)
	for i := 0; i < iv.Len(); i++ {
		upper, lower, v := out.At(i, nn.ColUpper), out.At(i, nn.ColLower), out.At(i, nn.ColValue)
		assert.InDelta(t, upper, iv.Upper.AtVec(i), 1e-12)
		assert.InDelta(t, lower, iv.Lower.AtVec(i), 1e-12)
		assert.InDelta(t, v*upper+(1-v)*lower, iv.Point.AtVec(i), 1e-12)
	}

	point, err := r.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(point, iv.Point))
}

func TestRegressorParallelPredictMatchesSerial(t *testing.T) {
	X, y := linearData(predictParallelThreshold+500, 0.1, 3)
	r := NewRegressor(smallBuild(2), WithEpochs(1), WithBatchSize(256), WithLogger(testLogger(t)))
	require.NoError(t, r.Fit(X, y))

	iv, err := r.PredictIntervals(X)
	require.NoError(t, err)
	out := r.Network().Forward(X, false)
	for _, i := range []int{0, 1000, predictParallelThreshold, predictParallelThreshold + 499} {
		assert.InDelta(t, out.At(i, nn.ColUpper), iv.Upper.AtVec(i), 1e-12)
	}
}

func TestRegressorAcceptsColumnTarget(t *testing.T) {
	X, y := linearData(50, 0.1, 4)
	col := mat.NewDense(50, 1, mat.Col(nil, 0, y))

	r := NewRegressor(smallBuild(1), WithEpochs(2), WithLogger(testLogger(t)))
	require.NoError(t, r.Fit(X, col))
	assert.True(t, r.IsFitted())
}

func TestRegressorDeterministic(t *testing.T) {
	X, y := linearData(80, 0.1, 5)
	fit := func() *mat.VecDense {
		r := NewRegressor(smallBuild(9), WithEpochs(3), WithSeed(11), WithLogger(testLogger(t)))
		require.NoError(t, r.Fit(X, y))
		p, err := r.Predict(X)
		require.NoError(t, err)
		return p
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestRegressorValidationSplit(t *testing.T) {
	X, y := linearData(100, 0.1, 6)
	r := NewRegressor(smallBuild(1),
		WithEpochs(3),
		WithValidationSplit(0.2),
		WithLogger(testLogger(t)),
	)
	require.NoError(t, r.Fit(X, y))
	assert.Len(t, r.History().Metrics[MetricValLoss], 3)

	nFeatures, nSamples := r.GetDimensions()
	assert.Equal(t, 2, nFeatures)
	assert.Equal(t, 100, nSamples)
}

func TestRegressorErrors(t *testing.T) {
	X, y := linearData(20, 0.1, 7)
	logger := testLogger(t)

	t.Run("not fitted", func(t *testing.T) {
		r := NewRegressor(smallBuild(1), WithLogger(logger))
		_, err := r.Predict(X)
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("target with two columns", func(t *testing.T) {
		r := NewRegressor(smallBuild(1), WithLogger(logger))
		err := r.Fit(X, mat.NewDense(20, 2, nil))
		var dim *errors.DimensionError
		require.True(t, errors.As(err, &dim))
		assert.Equal(t, 2, dim.Got)
	})

	t.Run("row mismatch", func(t *testing.T) {
		r := NewRegressor(smallBuild(1), WithLogger(logger))
		err := r.Fit(X, mat.NewVecDense(10, nil))
		var dim *errors.DimensionError
		assert.True(t, errors.As(err, &dim))
	})

	t.Run("feature mismatch on predict", func(t *testing.T) {
		r := NewRegressor(smallBuild(1), WithEpochs(1), WithLogger(logger))
		require.NoError(t, r.Fit(X, y))
		_, err := r.Predict(mat.NewDense(3, 5, nil))
		var dim *errors.DimensionError
		assert.True(t, errors.As(err, &dim))
	})

	t.Run("invalid options", func(t *testing.T) {
		for _, opt := range []Option{WithEpochs(0), WithBatchSize(0), WithValidationSplit(1)} {
			r := NewRegressor(smallBuild(1), opt, WithLogger(logger))
			var verr *errors.ValidationError
			assert.True(t, errors.As(r.Fit(X, y), &verr))
		}
	})

	t.Run("non-finite features", func(t *testing.T) {
		xBad := mat.DenseCopyOf(X)
		xBad.Set(3, 1, math.NaN())
		r := NewRegressor(smallBuild(1), WithEpochs(1), WithLogger(logger))
		var ni *errors.NumericalInstabilityError
		assert.True(t, errors.As(r.Fit(xBad, y), &ni))
	})

	t.Run("diverging loss", func(t *testing.T) {
		yBad := mat.NewVecDense(20, nil)
		yBad.SetVec(0, math.Inf(1))
		r := NewRegressor(smallBuild(1), WithEpochs(1), WithObjective(loss.PointMSE{}), WithLogger(logger))
		var ni *errors.NumericalInstabilityError
		assert.True(t, errors.As(r.Fit(X, yBad), &ni))
	})
}

// narrowGrad returns a gradient missing the value column.
type narrowGrad struct{}

func (narrowGrad) Name() string { return "narrow" }

func (narrowGrad) Evaluate(y []float64, out *mat.Dense) (loss.Result, error) {
	return loss.Result{Loss: 1, Grad: mat.NewDense(len(y), 2, nil)}, nil
}

func TestRegressorFitRecoversBackwardPanic(t *testing.T) {
	X, y := linearData(20, 0.1, 7)
	r := NewRegressor(smallBuild(1), WithEpochs(2), WithObjective(narrowGrad{}), WithLogger(testLogger(t)))

	err := r.Fit(X, y)
	var pe *errors.PanicError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, "Regressor.Fit", pe.Operation)
	assert.Contains(t, pe.StackTrace, "Backward")
	assert.False(t, r.IsFitted())
}

func TestRegressorSaveLoad(t *testing.T) {
	X, y := linearData(60, 0.1, 8)
	r := NewRegressor(smallBuild(4), WithEpochs(3), WithLogger(testLogger(t)))
	require.NoError(t, r.Fit(X, y))

	dir := t.TempDir()
	require.NoError(t, r.Save(dir, map[string]interface{}{"units": 16}))
	assert.FileExists(t, filepath.Join(dir, ModelFile))

	loaded, err := LoadRegressor(dir, smallBuild(4), WithLogger(testLogger(t)))
	require.NoError(t, err)

	want, err := r.PredictIntervals(X)
	require.NoError(t, err)
	got, err := loaded.PredictIntervals(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want.Point, got.Point, 1e-12))
	assert.True(t, mat.EqualApprox(want.Lower, got.Lower, 1e-12))
	assert.True(t, mat.EqualApprox(want.Upper, got.Upper, 1e-12))

	_, err = LoadRegressor(t.TempDir(), smallBuild(4))
	assert.Error(t, err)
}
