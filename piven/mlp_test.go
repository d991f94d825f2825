package piven

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/metrics"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

func fittedMLP(t *testing.T) (*MLPModel, *mat.Dense, *mat.VecDense) {
	t.Helper()
	X, y := linearData(120, 0.1, 21)
	m := NewMLPModel(testParams(), WithLogger(testLogger(t)))
	require.NoError(t, m.Fit(X, y))
	return m, X, y
}

func TestMLPModelBuild(t *testing.T) {
	p := testParams()
	p.DenseUnits = []int{8, 4}
	p.DropoutRate = []float64{0.1, 0}
	net, err := NewMLPModel(p).Build(3)
	require.NoError(t, err)
	assert.Equal(t, 3, net.InputDim())
	// 3*8+8 + 8*4+4 + head (4*2+2 + 4*1+1)
	assert.Equal(t, 32+36+10+5, net.NumParameters())
}

func TestMLPModelFitPredict(t *testing.T) {
	m, X, _ := fittedMLP(t)
	assert.True(t, m.IsFitted())

	iv, err := m.PredictIntervals(X)
	require.NoError(t, err)
	point, err := m.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(point, iv.Point))
}

func TestMLPModelNotFitted(t *testing.T) {
	m := NewMLPModel(testParams())
	X := mat.NewDense(2, 2, nil)
	var nf *errors.NotFittedError

	_, err := m.Predict(X)
	assert.True(t, errors.As(err, &nf))
	_, err = m.PredictIntervals(X)
	assert.True(t, errors.As(err, &nf))
	assert.True(t, errors.As(m.Save(t.TempDir()), &nf))
}

func TestMLPModelScore(t *testing.T) {
	m := NewMLPModel(testParams())
	y := []float64{1, 2, 3, 4}
	pred := []float64{1.5, 2, 2.5, 4}
	low := []float64{0, 1.5, 2.8, 3}
	high := []float64{2, 2.5, 3.5, 5}

	s, err := m.Score(y, pred, low, high)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, s.MAE, 1e-12)
	assert.InDelta(t, 0.3535533905932738, s.RMSE, 1e-12)
	assert.InDelta(t, 1.0, s.Coverage, 1e-12)
	assert.InDelta(t, 1.425, s.PIWidth, 1e-12)

	want, err := metrics.PivenLoss(y, pred, low, high, 15, 160, 0.05)
	require.NoError(t, err)
	assert.InDelta(t, want, s.Loss, 1e-12)

	_, err = m.Score(y, pred[:2], low, high)
	assert.Error(t, err)
}

func TestMLPModelSaveLoad(t *testing.T) {
	m, X, _ := fittedMLP(t)
	dir := t.TempDir()
	require.NoError(t, m.Save(dir))
	assert.FileExists(t, filepath.Join(dir, ParamsFile))
	assert.FileExists(t, filepath.Join(dir, ModelFile))

	loaded, err := LoadMLPModel(dir, WithLogger(testLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, m.Params(), loaded.Params())

	want, err := m.PredictIntervals(X)
	require.NoError(t, err)
	got, err := loaded.PredictIntervals(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want.Point, got.Point, 1e-12))
	assert.True(t, mat.EqualApprox(want.Upper, got.Upper, 1e-12))

	_, err = LoadMLPModel(t.TempDir())
	assert.Error(t, err)
}

func TestMLPModelLog(t *testing.T) {
	m, X, y := fittedMLP(t)
	dir := t.TempDir()

	scores, err := m.Log(X, y, dir, LogOptions{Model: true, Predictions: true, Chart: true})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	require.NoError(t, err)
	var written Scores
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, scores, written)
	assert.GreaterOrEqual(t, written.Coverage, 0.0)
	assert.LessOrEqual(t, written.Coverage, 1.0)

	assert.FileExists(t, filepath.Join(dir, ModelDir, ParamsFile))
	assert.FileExists(t, filepath.Join(dir, ModelDir, ModelFile))
	assert.FileExists(t, filepath.Join(dir, ChartFile))

	f, err := os.Open(filepath.Join(dir, PredictionsFile))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 121)
	assert.Equal(t, []string{"index", "y_true", "y_pred", "y_pi_low", "y_pi_high"}, records[0])
	assert.Equal(t, "0", records[1][0])

	// model/ already exists
	_, err = m.Log(X, y, dir, DefaultLogOptions())
	assert.Error(t, err)
}

func TestMLPModelLogRequiresDirectory(t *testing.T) {
	m, X, y := fittedMLP(t)

	_, err := m.Log(X, y, filepath.Join(t.TempDir(), "missing"), DefaultLogOptions())
	assert.True(t, errors.Is(err, errors.ErrNotADirectory))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = m.Log(X, y, file, DefaultLogOptions())
	assert.True(t, errors.Is(err, errors.ErrNotADirectory))
}

func TestMLPModelParams(t *testing.T) {
	m := NewMLPModel(testParams())
	params := m.GetParams()
	assert.Equal(t, 15.0, params["lambda_"])

	require.NoError(t, m.SetParams(map[string]interface{}{"lambda_": 30.0, "epochs": 2}))
	assert.Equal(t, 30.0, m.Params().Lambda)
	assert.Equal(t, 2, m.Params().Epochs)

	var verr *errors.ValidationError
	assert.True(t, errors.As(m.SetParams(map[string]interface{}{"lr": -1.0}), &verr))
	assert.Equal(t, 30.0, m.Params().Lambda)
}
