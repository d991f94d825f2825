package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Initializer fills a parameter slice. fanIn and fanOut describe the layer
// the slice belongs to.
type Initializer func(dst []float64, fanIn, fanOut int, src rand.Source)

// GlorotUniform samples from U(-limit, limit) with
// limit = sqrt(6 / (fanIn + fanOut)).
func GlorotUniform() Initializer {
	return func(dst []float64, fanIn, fanOut int, src rand.Source) {
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}
		for i := range dst {
			dst[i] = dist.Rand()
		}
	}
}

// RandomNormal samples from N(0, stddev²).
func RandomNormal(stddev float64) Initializer {
	return func(dst []float64, _, _ int, src rand.Source) {
		dist := distuv.Normal{Mu: 0, Sigma: stddev, Src: src}
		for i := range dst {
			dst[i] = dist.Rand()
		}
	}
}

// Constant sets dst[i] to values[i % len(values)].
func Constant(values ...float64) Initializer {
	return func(dst []float64, _, _ int, _ rand.Source) {
		if len(values) == 0 {
			return
		}
		for i := range dst {
			dst[i] = values[i%len(values)]
		}
	}
}

// Zeros leaves the slice at zero.
func Zeros() Initializer {
	return Constant(0)
}

// NewSource returns the deterministic random source used for weight
// initialisation, dropout masks and shuffling.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
