// Package loss implements training objectives over the Piven head output.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/piven/nn"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

// Default Piven hyperparameters.
const (
	DefaultLambda = 15.0
	DefaultSoften = 160.0
	DefaultAlpha  = 0.05
	DefaultBeta   = 0.5

	// capturedEps keeps the captured-width average finite when no target
	// falls inside its interval.
	capturedEps = 0.001
)

// Objective evaluates a batch: targets y (one per row) against the n×3 head
// output, returning the scalar loss and its gradient.
type Objective interface {
	Name() string
	Evaluate(y []float64, out *mat.Dense) (Result, error)
}

// Result is the value and gradient of an objective on one batch.
type Result struct {
	Loss float64

	// Grad is ∂Loss/∂out with the same n×3 shape as the head output.
	Grad *mat.Dense

	// Breakdown of the Piven objective. Zero for other objectives.
	Terms Terms
}

// Terms are the individual components of the Piven objective.
type Terms struct {
	// MPIWCaptured is the mean interval width over targets inside their
	// interval.
	MPIWCaptured float64
	// PICPSoft is the smoothed coverage.
	PICPSoft float64
	// PICPHard is the exact coverage (strict inequalities).
	PICPHard float64
	// IntervalLoss is MPIWCaptured plus the coverage penalty.
	IntervalLoss float64
	// ValueLoss is the mean squared error of the point prediction.
	ValueLoss float64
}

// Piven is the Piven objective:
//
//	k_soft  = σ(s(U−y))·σ(s(y−L))
//	k_hard  = 1[U>y]·1[y>L]
//	MPIW_c  = Σ|U−L|·k_hard / (Σk_hard + 0.001)
//	PICP_s  = mean(k_soft)
//	pi_loss = MPIW_c + λ·√n·max(0, 1−α−PICP_s)²
//	ŷ       = v·U + (1−v)·L
//	loss    = β·pi_loss + (1−β)·mean((y−ŷ)²)
//
// k_hard is treated as constant when differentiating.
type Piven struct {
	// Lambda weighs the coverage penalty against interval width.
	Lambda float64
	// Soften is the sigmoid sharpness of the soft coverage indicator.
	Soften float64
	// Alpha is the target miscoverage; intervals aim for 1−Alpha coverage.
	Alpha float64
	// Beta weighs the interval loss against the point loss.
	Beta float64
}

// NewPiven returns the objective with the default soften, alpha and beta.
func NewPiven(lambda float64) Piven {
	return Piven{Lambda: lambda, Soften: DefaultSoften, Alpha: DefaultAlpha, Beta: DefaultBeta}
}

// Name implements Objective.
func (p Piven) Name() string { return "piven" }

// Validate checks the hyperparameters.
func (p Piven) Validate() error {
	if p.Lambda < 0 {
		return errors.NewValidationError("lambda", "must be non-negative", p.Lambda)
	}
	if p.Soften <= 0 {
		return errors.NewValidationError("soften", "must be positive", p.Soften)
	}
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return errors.NewValidationError("alpha", "must be in (0, 1)", p.Alpha)
	}
	if p.Beta < 0 || p.Beta > 1 {
		return errors.NewValidationError("beta", "must be in [0, 1]", p.Beta)
	}
	return nil
}

func checkBatch(op string, y []float64, out *mat.Dense) (int, error) {
	n, c := out.Dims()
	if len(y) == 0 || n == 0 {
		return 0, errors.NewValueError(op, "empty batch")
	}
	if c != 3 {
		return 0, errors.NewDimensionError(op, 3, c, 1)
	}
	if len(y) != n {
		return 0, errors.NewDimensionError(op, n, len(y), 0)
	}
	return n, nil
}

// Evaluate implements Objective.
func (p Piven) Evaluate(y []float64, out *mat.Dense) (Result, error) {
	n, err := checkBatch("Piven.Evaluate", y, out)
	if err != nil {
		return Result{}, err
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	upper := make([]float64, n)
	lower := make([]float64, n)
	value := make([]float64, n)
	point := make([]float64, n)
	for i := 0; i < n; i++ {
		upper[i] = out.At(i, nn.ColUpper)
		lower[i] = out.At(i, nn.ColLower)
		value[i] = out.At(i, nn.ColValue)
		point[i] = nn.PointPrediction(upper[i], lower[i], value[i])
	}

	terms, st := p.terms(y, point, lower, upper)
	lossValue := p.Beta*terms.IntervalLoss + (1-p.Beta)*terms.ValueLoss

	fn := float64(n)
	grad := mat.NewDense(n, 3, nil)
	// ∂pen/∂PICP_s
	dPICP := -2 * p.Lambda * math.Sqrt(fn) * st.shortfall
	for i := 0; i < n; i++ {
		var dU, dL, dV float64

		// captured width
		if st.hard[i] > 0 {
			s := sign(upper[i] - lower[i])
			dU += s / st.hardDenom
			dL -= s / st.hardDenom
		}

		// soft coverage
		sa, sb := st.sigUpper[i], st.sigLower[i]
		dU += dPICP * p.Soften * sa * (1 - sa) * sb / fn
		dL -= dPICP * p.Soften * sa * sb * (1 - sb) / fn

		dU *= p.Beta
		dL *= p.Beta

		// point error
		r := 2 * (point[i] - y[i]) / fn * (1 - p.Beta)
		dU += r * value[i]
		dL += r * (1 - value[i])
		dV = r * (upper[i] - lower[i])

		grad.Set(i, nn.ColUpper, dU)
		grad.Set(i, nn.ColLower, dL)
		grad.Set(i, nn.ColValue, dV)
	}

	return Result{Loss: lossValue, Grad: grad, Terms: terms}, nil
}

// Score evaluates the objective on already-combined predictions without a
// gradient. It is used for reporting, where the point prediction ŷ is given
// directly instead of through the gate v.
func (p Piven) Score(y, point, lower, upper []float64) (float64, Terms, error) {
	n := len(y)
	if n == 0 {
		return 0, Terms{}, errors.NewValueError("Piven.Score", "empty vector")
	}
	for _, other := range [][]float64{point, lower, upper} {
		if len(other) != n {
			return 0, Terms{}, errors.NewDimensionError("Piven.Score", n, len(other), 0)
		}
	}
	if err := p.Validate(); err != nil {
		return 0, Terms{}, err
	}
	terms, _ := p.terms(y, point, lower, upper)
	return p.Beta*terms.IntervalLoss + (1-p.Beta)*terms.ValueLoss, terms, nil
}

type state struct {
	hard      []float64
	hardDenom float64
	sigUpper  []float64
	sigLower  []float64
	shortfall float64
}

func (p Piven) terms(y, point, lower, upper []float64) (Terms, state) {
	n := len(y)
	st := state{
		hard:     make([]float64, n),
		sigUpper: make([]float64, n),
		sigLower: make([]float64, n),
	}

	var hardSum, widthSum, softSum, sqErr float64
	for i := 0; i < n; i++ {
		if upper[i] > y[i] && y[i] > lower[i] {
			st.hard[i] = 1
			widthSum += math.Abs(upper[i] - lower[i])
		}
		hardSum += st.hard[i]

		st.sigUpper[i] = errors.StableSigmoid(p.Soften * (upper[i] - y[i]))
		st.sigLower[i] = errors.StableSigmoid(p.Soften * (y[i] - lower[i]))
		softSum += st.sigUpper[i] * st.sigLower[i]

		d := y[i] - point[i]
		sqErr += d * d
	}
	fn := float64(n)
	st.hardDenom = hardSum + capturedEps

	t := Terms{
		MPIWCaptured: widthSum / st.hardDenom,
		PICPSoft:     softSum / fn,
		PICPHard:     hardSum / fn,
		ValueLoss:    sqErr / fn,
	}
	st.shortfall = math.Max(0, 1-p.Alpha-t.PICPSoft)
	t.IntervalLoss = t.MPIWCaptured + p.Lambda*math.Sqrt(fn)*st.shortfall*st.shortfall
	return t, st
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// String describes the objective's hyperparameters.
func (p Piven) String() string {
	return fmt.Sprintf("Piven(lambda=%g, soften=%g, alpha=%g, beta=%g)", p.Lambda, p.Soften, p.Alpha, p.Beta)
}
