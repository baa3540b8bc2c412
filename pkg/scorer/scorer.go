// Package scorer applies the frozen linear model: standardize the feature
// vector, take the dot product with the trained coefficients, and squash
// through a logistic to a probability-like score. The model was trained
// offline; only its parameters live here, as data, so test fixtures can
// swap in synthetic models.
package scorer

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

// ErrSchemaMismatch is returned when a feature vector's dimensionality does
// not match the model's coefficient vector.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// Params is the serialized form of a frozen model: the feature order it was
// trained on, the standardization vectors, and the decision function.
type Params struct {
	Version   string    `json:"version"`
	Features  []string  `json:"features"`
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

//go:embed frozen_model.json
var frozenModelJSON []byte

// Scorer is a pure function over feature vectors. It is immutable and safe
// for concurrent use.
type Scorer struct {
	params Params
}

// New validates the parameter vectors and returns a scorer.
func New(params Params) (*Scorer, error) {
	n := len(params.Coef)
	if n == 0 {
		return nil, fmt.Errorf("model %q has no coefficients", params.Version)
	}
	if len(params.Mean) != n || len(params.Scale) != n {
		return nil, fmt.Errorf("model %q: mean/scale length does not match %d coefficients",
			params.Version, n)
	}
	if len(params.Features) != 0 && len(params.Features) != n {
		return nil, fmt.Errorf("model %q: %d feature names for %d coefficients",
			params.Version, len(params.Features), n)
	}
	for i, s := range params.Scale {
		if s == 0 {
			return nil, fmt.Errorf("model %q: zero scale for feature %d", params.Version, i)
		}
	}
	return &Scorer{params: params}, nil
}

// Frozen returns the scorer backed by the embedded trained model.
func Frozen() *Scorer {
	var params Params
	if err := json.Unmarshal(frozenModelJSON, &params); err != nil {
		panic(fmt.Sprintf("embedded model is invalid: %v", err))
	}
	s, err := New(params)
	if err != nil {
		panic(fmt.Sprintf("embedded model is invalid: %v", err))
	}
	return s
}

// Load reads model parameters from a JSON file, for runs pinned to a model
// other than the embedded one.
func Load(path string) (*Scorer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model parameters: %w", err)
	}
	var params Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("failed to parse model parameters: %w", err)
	}
	return New(params)
}

// Version returns the model's version tag.
func (s *Scorer) Version() string {
	return s.params.Version
}

// NumFeatures returns the expected feature vector length.
func (s *Scorer) NumFeatures() int {
	return len(s.params.Coef)
}

// Score standardizes the feature values, applies the linear decision
// function, and squashes the logit into (0,1). The input slice is not
// modified.
func (s *Scorer) Score(values []float64) (float64, error) {
	n := len(s.params.Coef)
	if len(values) != n {
		return 0, fmt.Errorf("%w: got %d features, model %q expects %d",
			ErrSchemaMismatch, len(values), s.params.Version, n)
	}

	standardized := make([]float64, n)
	for i, v := range values {
		standardized[i] = (v - s.params.Mean[i]) / s.params.Scale[i]
	}

	logit := floats.Dot(standardized, s.params.Coef) + s.params.Intercept
	return sigmoid(logit), nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Combined is the auxiliary alpha/beta heuristic carried alongside the
// model score. The overlap term is squashed with n/(n+1) instead of the
// old run-wide max normalization, keeping every chunk independent of the
// rest of the run.
func Combined(nOverlap int, proximity, alpha, beta float64) float64 {
	normOverlap := float64(nOverlap) / float64(nOverlap+1)
	return alpha*normOverlap + beta*proximity
}
