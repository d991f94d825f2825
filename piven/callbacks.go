package piven

import (
	"math"
	"time"

	"github.com/YuminosukeSato/piven/pkg/errors"
	"github.com/YuminosukeSato/piven/pkg/log"
)

// Metric names reported to callbacks and recorded in a History.
const (
	MetricLoss    = "loss"
	MetricValLoss = "val_loss"
)

// CallbackEnv is passed to every callback at the end of an epoch.
type CallbackEnv struct {
	Model        *Regressor
	Epoch        int
	Epochs       int
	Start        time.Time
	Logs         map[string]float64
	StopTraining bool
}

// Callback is invoked after every training epoch. Setting
// env.StopTraining ends training after the current epoch.
type Callback func(env *CallbackEnv) error

// CallbackList runs callbacks in order.
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a callback list bound to a regressor.
func NewCallbackList(model *Regressor, epochs int, callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env: &CallbackEnv{
			Model:  model,
			Epochs: epochs,
			Start:  time.Now(),
		},
	}
}

// AfterEpoch runs all callbacks with the epoch's metrics.
func (cl *CallbackList) AfterEpoch(epoch int, logs map[string]float64) error {
	cl.env.Epoch = epoch
	cl.env.Logs = logs
	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop reports whether a callback requested the end of training.
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}

// EarlyStopping stops training once monitor has not improved for patience
// consecutive epochs. Its state starts over at epoch 0, so the same callback
// can be reused across fits.
func EarlyStopping(monitor string, patience int, minimize bool) Callback {
	var (
		best      float64
		bestEpoch int
		wait      int
	)
	reset := func() {
		best = math.Inf(1)
		if !minimize {
			best = math.Inf(-1)
		}
		bestEpoch, wait = 0, 0
	}
	reset()

	return func(env *CallbackEnv) error {
		if env.Epoch == 0 {
			reset()
		}
		value, ok := env.Logs[monitor]
		if !ok {
			return nil
		}
		improved := value > best
		if minimize {
			improved = value < best
		}
		if improved {
			best = value
			bestEpoch = env.Epoch
			wait = 0
			return nil
		}
		wait++
		if wait >= patience {
			env.Model.logger.Info("Early stopping",
				log.EpochKey, env.Epoch,
				"best_epoch", bestEpoch,
				"monitor", monitor,
				"best", best,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// RecordHistory appends every epoch's metrics to history.
func RecordHistory(history *History) Callback {
	return func(env *CallbackEnv) error {
		history.append(env.Logs)
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since training
// started and emits a ConvergenceWarning.
func TimeLimit(maxDuration time.Duration) Callback {
	return func(env *CallbackEnv) error {
		if time.Since(env.Start) > maxDuration {
			errors.Warn(errors.NewConvergenceWarning("Regressor", env.Epoch+1,
				"time limit of "+maxDuration.String()+" reached"))
			env.StopTraining = true
		}
		return nil
	}
}

// PrintProgress logs the epoch metrics every period epochs.
func PrintProgress(period int) Callback {
	if period < 1 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if (env.Epoch+1)%period != 0 && env.Epoch+1 != env.Epochs {
			return nil
		}
		fields := []any{log.EpochKey, env.Epoch + 1, log.EpochsKey, env.Epochs}
		if v, ok := env.Logs[MetricLoss]; ok {
			fields = append(fields, log.LossKey, v)
		}
		if v, ok := env.Logs[MetricValLoss]; ok {
			fields = append(fields, log.ValLossKey, v)
		}
		env.Model.logger.Info("Epoch finished", fields...)
		return nil
	}
}

// History holds per-epoch metrics, keyed by metric name.
type History struct {
	Epochs  []int                `json:"epochs"`
	Metrics map[string][]float64 `json:"metrics"`
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{Metrics: make(map[string][]float64)}
}

func (h *History) append(logs map[string]float64) {
	if h.Metrics == nil {
		h.Metrics = make(map[string][]float64)
	}
	h.Epochs = append(h.Epochs, len(h.Epochs))
	for name, v := range logs {
		h.Metrics[name] = append(h.Metrics[name], v)
	}
}

// Len returns the number of recorded epochs.
func (h *History) Len() int { return len(h.Epochs) }

// Last returns the most recent value of metric.
func (h *History) Last(metric string) (float64, bool) {
	values := h.Metrics[metric]
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}
