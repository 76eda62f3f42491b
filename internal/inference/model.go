// Package inference loads trained gradient-boosted tree models and wraps
// them in the two adapters the API serves: a delay classifier and a price
// regressor. Loaded models are read-only and safe for concurrent use.
package inference

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitryikh/leaves"
)

// Model scores one feature vector. For classifiers the score is the
// positive-class probability; for regressors it is the raw estimate.
type Model interface {
	Predict(features []float64) (float64, error)
	// NFeatures is the expected vector length, or 0 when unknown.
	NFeatures() int
}

// Load parses a model artifact. Names ending in .json are read as an XGBoost
// JSON tree dump; anything else as a native XGBoost binary model.
func Load(name string, r io.Reader) (Model, error) {
	if strings.EqualFold(path.Ext(name), ".json") {
		m, err := LoadTreeDump(r)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		return m, nil
	}

	m, err := LoadXGBoost(r)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return m, nil
}

// leavesModel adapts a leaves ensemble.
type leavesModel struct {
	ens *leaves.Ensemble
}

// LoadXGBoost reads a native XGBoost binary model. The objective's output
// transformation is applied, so binary:logistic models yield probabilities.
func LoadXGBoost(r io.Reader) (Model, error) {
	ens, err := leaves.XGEnsembleFromReader(bufio.NewReader(r), true)
	if err != nil {
		return nil, fmt.Errorf("xgboost: %w", err)
	}
	return &leavesModel{ens: ens}, nil
}

func (m *leavesModel) Predict(features []float64) (float64, error) {
	// 0 estimators means all of them
	return m.ens.PredictSingle(features, 0), nil
}

func (m *leavesModel) NFeatures() int {
	return m.ens.NFeatures()
}
