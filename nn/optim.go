package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/piven/pkg/errors"
)

// Optimizer updates parameters in place from their gradients.
type Optimizer interface {
	// Step applies one update and returns the global gradient L2 norm
	// before clipping.
	Step(params []*Parameter) float64

	// LearningRate returns the current step size.
	LearningRate() float64

	// SetLearningRate changes the step size, e.g. from a schedule.
	SetLearningRate(lr float64)
}

// clip rescales all gradients together so that their global L2 norm is at
// most clipNorm, and returns the global norm before clipping.
func clip(params []*Parameter, clipNorm float64) float64 {
	grads := make([][]float64, len(params))
	for i, p := range params {
		grads[i] = p.Grad
	}
	return errors.ClipGradients(clipNorm, grads...)
}

// AdamConfig configures Adam. A zero field means "use the default":
// LR=0.001, Beta1=0.9, Beta2=0.999, Eps=1e-7. Beta1 therefore cannot be
// set to exactly 0; use a tiny positive value such as 1e-12 to disable
// the first-moment average.
type AdamConfig struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	// ClipNorm, when positive, caps the global L2 norm of all gradients.
	ClipNorm float64
}

// Adam implements the Adam optimizer with bias correction:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g²
//	p -= lr * m̂ / (sqrt(v̂) + eps)
//
// Moment estimates are keyed by parameter name, so Step may be given a
// freshly built parameter slice on every call.
type Adam struct {
	cfg AdamConfig
	t   int
	m   map[string][]float64
	v   map[string][]float64
}

// NewAdam creates an Adam optimizer.
func NewAdam(cfg AdamConfig) *Adam {
	if cfg.LR == 0 {
		cfg.LR = 0.001
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-7
	}
	return &Adam{
		cfg: cfg,
		m:   make(map[string][]float64),
		v:   make(map[string][]float64),
	}
}

// Step implements Optimizer.
func (a *Adam) Step(params []*Parameter) float64 {
	norm := clip(params, a.cfg.ClipNorm)

	a.t++
	bc1 := 1 - math.Pow(a.cfg.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.cfg.Beta2, float64(a.t))

	for _, p := range params {
		m, ok := a.m[p.Name]
		if !ok || len(m) != len(p.Value) {
			m = make([]float64, len(p.Value))
			a.m[p.Name] = m
			a.v[p.Name] = make([]float64, len(p.Value))
		}
		v := a.v[p.Name]
		for i, g := range p.Grad {
			m[i] = a.cfg.Beta1*m[i] + (1-a.cfg.Beta1)*g
			v[i] = a.cfg.Beta2*v[i] + (1-a.cfg.Beta2)*g*g
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			p.Value[i] -= a.cfg.LR * mHat / (math.Sqrt(vHat) + a.cfg.Eps)
		}
	}
	return norm
}

// LearningRate implements Optimizer.
func (a *Adam) LearningRate() float64 { return a.cfg.LR }

// SetLearningRate implements Optimizer.
func (a *Adam) SetLearningRate(lr float64) { a.cfg.LR = lr }

// SGD is stochastic gradient descent with optional momentum. Velocities are
// keyed by parameter name.
type SGD struct {
	lr       float64
	momentum float64
	clipNorm float64
	velocity map[string][]float64
}

// NewSGD creates an SGD optimizer.
func NewSGD(lr, momentum, clipNorm float64) *SGD {
	if lr == 0 {
		lr = 0.01
	}
	return &SGD{lr: lr, momentum: momentum, clipNorm: clipNorm, velocity: make(map[string][]float64)}
}

// Step implements Optimizer.
func (s *SGD) Step(params []*Parameter) float64 {
	norm := clip(params, s.clipNorm)
	for _, p := range params {
		if s.momentum == 0 {
			floats.AddScaled(p.Value, -s.lr, p.Grad)
			continue
		}
		vel, ok := s.velocity[p.Name]
		if !ok || len(vel) != len(p.Value) {
			vel = make([]float64, len(p.Value))
			s.velocity[p.Name] = vel
		}
		floats.Scale(s.momentum, vel)
		floats.AddScaled(vel, -s.lr, p.Grad)
		floats.Add(p.Value, vel)
	}
	return norm
}

// LearningRate implements Optimizer.
func (s *SGD) LearningRate() float64 { return s.lr }

// SetLearningRate implements Optimizer.
func (s *SGD) SetLearningRate(lr float64) { s.lr = lr }
