package inference

import (
	"fmt"
	"math"

	"github.com/dmitrijs2005/windbreaker/internal/common"
)

const (
	LabelDelayed = "DELAYED"
	LabelOnTime  = "ON TIME"
)

// DelayPrediction is the classifier's answer for one flight.
type DelayPrediction struct {
	Label       string
	Probability float64 // rounded to 4 decimals
	RiskScore   int     // 0..100
}

// Classifier wraps a binary delay model.
type Classifier struct {
	model Model
	arity int
}

// NewClassifier binds m to a vector of arity columns. It fails when the
// model declares a different width.
func NewClassifier(m Model, arity int) (*Classifier, error) {
	if err := checkArity(m, arity); err != nil {
		return nil, err
	}
	return &Classifier{model: m, arity: arity}, nil
}

// Predict scores vec. Probabilities strictly above 0.5 mean DELAYED.
func (c *Classifier) Predict(vec []float64) (DelayPrediction, error) {
	p, err := score(c.model, c.arity, vec)
	if err != nil {
		return DelayPrediction{}, err
	}

	p = math.Min(1, math.Max(0, p))

	label := LabelOnTime
	if p > 0.5 {
		label = LabelDelayed
	}

	return DelayPrediction{
		Label:       label,
		Probability: math.Round(p*1e4) / 1e4,
		RiskScore:   RiskScore(p),
	}, nil
}

// RiskScore maps a probability to a whole percentage in [0,100].
func RiskScore(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	return int(math.Round(math.Min(1, math.Max(0, p)) * 100))
}

// Regressor wraps the price model.
type Regressor struct {
	model Model
	arity int
}

func NewRegressor(m Model, arity int) (*Regressor, error) {
	if err := checkArity(m, arity); err != nil {
		return nil, err
	}
	return &Regressor{model: m, arity: arity}, nil
}

// Predict returns the absolute value of the model output.
func (r *Regressor) Predict(vec []float64) (float64, error) {
	y, err := score(r.model, r.arity, vec)
	if err != nil {
		return 0, err
	}
	return math.Abs(y), nil
}

func checkArity(m Model, arity int) error {
	if n := m.NFeatures(); n > 0 && n != arity {
		return fmt.Errorf("model expects %d features, vector has %d", n, arity)
	}
	return nil
}

// score runs the model with the checks both adapters share. Any backend
// failure, panic, or non-finite output becomes common.ErrInference.
func score(m Model, arity int, vec []float64) (y float64, err error) {
	if len(vec) != arity {
		return 0, fmt.Errorf("%w: got %d features, want %d", common.ErrInference, len(vec), arity)
	}

	defer func() {
		if r := recover(); r != nil {
			y, err = 0, fmt.Errorf("%w: model panicked: %v", common.ErrInference, r)
		}
	}()

	y, err = m.Predict(vec)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrInference, err)
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("%w: non-finite model output", common.ErrInference)
	}
	return y, nil
}
