package piven

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/nn"
	"github.com/YuminosukeSato/piven/pkg/log"
)

// linearData returns y = 2*x0 - x1 + 0.5 + noise with x uniform in [0, 1).
func linearData(n int, noise float64, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x0, x1 := rng.Float64(), rng.Float64()
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y.SetVec(i, 2*x0-x1+0.5+noise*rng.NormFloat64())
	}
	return X, y
}

func smallBuild(seed uint64) BuildFunc {
	return func(inputDim int) (*nn.Network, error) {
		return nn.NewNetwork(nn.NetworkConfig{
			InputDim: inputDim,
			Units:    []int{16},
			Seed:     seed,
		})
	}
}

func testLogger(t *testing.T) *log.TestLogger {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return logger
}

func testParams() Params {
	p := DefaultParams()
	p.DenseUnits = []int{16}
	p.DropoutRate = []float64{0}
	p.LearningRate = 1e-2
	p.Epochs = 30
	p.BatchSize = 16
	p.Seed = 7
	return p
}
