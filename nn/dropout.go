package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes each activation with probability rate during training and
// scales the survivors by 1/(1-rate). At inference it is the identity.
type Dropout struct {
	rate float64
	rng  *rand.Rand
	mask *mat.Dense
}

// NewDropout creates a dropout layer. A rate outside (0,1) disables it.
func NewDropout(rate float64, src rand.Source) *Dropout {
	return &Dropout{rate: rate, rng: rand.New(src)}
}

// Rate returns the drop probability.
func (d *Dropout) Rate() float64 { return d.rate }

func (d *Dropout) active() bool {
	return d.rate > 0 && d.rate < 1
}

// Forward implements Layer.
func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training {
		// inference may run concurrently, so leave the cached mask alone
		return x
	}
	if !d.active() {
		d.mask = nil
		return x
	}
	n, c := x.Dims()
	keep := 1 / (1 - d.rate)
	d.mask = mat.NewDense(n, c, nil)
	mask := d.mask.RawMatrix().Data
	for i := range mask {
		if d.rng.Float64() >= d.rate {
			mask[i] = keep
		}
	}
	out := mat.NewDense(n, c, nil)
	out.MulElem(x, d.mask)
	return out
}

// Backward implements Layer.
func (d *Dropout) Backward(dOut *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return dOut
	}
	n, c := dOut.Dims()
	dX := mat.NewDense(n, c, nil)
	dX.MulElem(dOut, d.mask)
	return dX
}

// Parameters implements Layer.
func (d *Dropout) Parameters() []*Parameter { return nil }
