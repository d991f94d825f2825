// Package preprocessing provides feature and target scaling.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

// StandardScaler はデータを平均0、標準偏差1に変換する
//
// All state lives in exported fields so a fitted scaler can be persisted
// with model.SaveModel.
type StandardScaler struct {
	*model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差）
	Scale []float64

	WithMean bool
	WithStd  bool
}

// NewStandardScaler creates a scaler.
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		StateManager: model.NewStateManager(),
		WithMean:     withMean,
		WithStd:      withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes per-column mean and population standard deviation. Columns
// with (near) zero variance get a scale of 1.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if s.StateManager == nil {
		s.StateManager = model.NewStateManager()
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd {
			if std := math.Sqrt(variance); std >= 1e-8 {
				s.Scale[j] = std
			}
		}
	}

	s.SetDimensions(c, r)
	s.SetFitted()
	return nil
}

func (s *StandardScaler) apply(op string, X mat.Matrix, fn func(v float64, j int) float64) (mat.Matrix, error) {
	if s.StateManager == nil {
		return nil, errors.NewNotFittedError("StandardScaler", op)
	}
	if err := s.RequireFitted("StandardScaler", op); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.CheckFeatures("StandardScaler."+op, c); err != nil {
		return nil, err
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 { return fn(v, j) }, X)
	return result, nil
}

// Transform standardises X with the fitted statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("Transform", X, func(v float64, j int) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardised values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("InverseTransform", X, func(v float64, j int) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

// InverseTransformVec applies InverseTransform to a single-column scaler's
// output given as a vector.
func (s *StandardScaler) InverseTransformVec(v *mat.VecDense) (*mat.VecDense, error) {
	out, err := s.InverseTransform(v)
	if err != nil {
		return nil, err
	}
	n := v.Len()
	res := mat.NewVecDense(n, nil)
	res.CopyVec(out.(*mat.Dense).ColView(0))
	return res, nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	if s.StateManager == nil || !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	nFeatures, _ := s.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, nFeatures)
}

var _ model.InverseTransformer = (*StandardScaler)(nil)
