package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Classifier maps a feature row to one of its classes.
// PredictProba returns one probability per entry of Classes, in the same order.
type Classifier interface {
	Type() string
	Classes() []int
	Dim() int
	Predict(row Row) int
	PredictProba(row Row) []float64
}

type decoder func(data []byte) (Classifier, error)

var decoders = map[string]decoder{
	"multinomial_nb":      decodeNaiveBayes,
	"logistic_regression": decodeLogistic,
}

// LoadClassifier reads a classifier artifact from disk, dispatching on its type field
func LoadClassifier(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier: %w", err)
	}
	return DecodeClassifier(data)
}

// DecodeClassifier decodes a classifier artifact
func DecodeClassifier(data []byte) (Classifier, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: parse classifier: %v", ErrArtifact, err)
	}
	if header.Type == "" {
		header.Type = "multinomial_nb"
	}

	dec, ok := decoders[header.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown classifier type %q", ErrArtifact, header.Type)
	}
	return dec(data)
}

// NaiveBayesArtifact is the JSON export of a fitted multinomial naive Bayes model
type NaiveBayesArtifact struct {
	Type           string      `json:"type"`
	Classes        []int       `json:"classes"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
}

// NaiveBayes scores rows by joint log likelihood
type NaiveBayes struct {
	kind           string
	classes        []int
	classLogPrior  []float64
	featureLogProb [][]float64
	dim            int
}

func decodeNaiveBayes(data []byte) (Classifier, error) {
	var a NaiveBayesArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse naive bayes: %v", ErrArtifact, err)
	}
	return NewNaiveBayes(a)
}

// NewNaiveBayes validates the artifact shapes
func NewNaiveBayes(a NaiveBayesArtifact) (*NaiveBayes, error) {
	k := len(a.Classes)
	if k < 2 {
		return nil, fmt.Errorf("%w: naive bayes needs at least 2 classes, got %d", ErrArtifact, k)
	}
	if len(a.ClassLogPrior) != k || len(a.FeatureLogProb) != k {
		return nil, fmt.Errorf("%w: naive bayes shapes do not match %d classes", ErrArtifact, k)
	}

	dim := len(a.FeatureLogProb[0])
	for i, probs := range a.FeatureLogProb {
		if len(probs) != dim {
			return nil, fmt.Errorf("%w: feature_log_prob row %d has %d features, want %d", ErrArtifact, i, len(probs), dim)
		}
	}

	kind := a.Type
	if kind == "" {
		kind = "multinomial_nb"
	}

	return &NaiveBayes{
		kind:           kind,
		classes:        a.Classes,
		classLogPrior:  a.ClassLogPrior,
		featureLogProb: a.FeatureLogProb,
		dim:            dim,
	}, nil
}

func (nb *NaiveBayes) Type() string   { return nb.kind }
func (nb *NaiveBayes) Classes() []int { return nb.classes }
func (nb *NaiveBayes) Dim() int       { return nb.dim }

func (nb *NaiveBayes) jointLogLikelihood(row Row) []float64 {
	jll := make([]float64, len(nb.classes))
	for c := range nb.classes {
		score := nb.classLogPrior[c]
		for _, f := range row {
			score += f.Value * nb.featureLogProb[c][f.Index]
		}
		jll[c] = score
	}
	return jll
}

func (nb *NaiveBayes) Predict(row Row) int {
	return nb.classes[argmax(nb.jointLogLikelihood(row))]
}

func (nb *NaiveBayes) PredictProba(row Row) []float64 {
	jll := nb.jointLogLikelihood(row)
	lse := logSumExp(jll)
	probs := make([]float64, len(jll))
	for i, v := range jll {
		probs[i] = math.Exp(v - lse)
	}
	return probs
}

// LogisticArtifact is the JSON export of a fitted logistic regression model
type LogisticArtifact struct {
	Type      string      `json:"type"`
	Classes   []int       `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// Logistic is a linear model with softmax (or sigmoid for two classes) output
type Logistic struct {
	classes   []int
	coef      [][]float64
	intercept []float64
	dim       int
}

func decodeLogistic(data []byte) (Classifier, error) {
	var a LogisticArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse logistic regression: %v", ErrArtifact, err)
	}
	return NewLogistic(a)
}

// NewLogistic validates the artifact shapes. A binary model carries a single coefficient row.
func NewLogistic(a LogisticArtifact) (*Logistic, error) {
	k := len(a.Classes)
	if k < 2 {
		return nil, fmt.Errorf("%w: logistic regression needs at least 2 classes, got %d", ErrArtifact, k)
	}

	rows := k
	if k == 2 {
		rows = 1
	}
	if len(a.Coef) != rows || len(a.Intercept) != rows {
		return nil, fmt.Errorf("%w: logistic regression expects %d coefficient rows for %d classes", ErrArtifact, rows, k)
	}

	dim := len(a.Coef[0])
	for i, c := range a.Coef {
		if len(c) != dim {
			return nil, fmt.Errorf("%w: coef row %d has %d features, want %d", ErrArtifact, i, len(c), dim)
		}
	}

	return &Logistic{classes: a.Classes, coef: a.Coef, intercept: a.Intercept, dim: dim}, nil
}

func (l *Logistic) Type() string   { return "logistic_regression" }
func (l *Logistic) Classes() []int { return l.classes }
func (l *Logistic) Dim() int       { return l.dim }

func (l *Logistic) decision(row Row) []float64 {
	scores := make([]float64, len(l.coef))
	for c, w := range l.coef {
		s := l.intercept[c]
		for _, f := range row {
			s += f.Value * w[f.Index]
		}
		scores[c] = s
	}
	return scores
}

func (l *Logistic) PredictProba(row Row) []float64 {
	scores := l.decision(row)
	if len(l.classes) == 2 {
		p := 1 / (1 + math.Exp(-scores[0]))
		return []float64{1 - p, p}
	}

	lse := logSumExp(scores)
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - lse)
	}
	return probs
}

func (l *Logistic) Predict(row Row) int {
	return l.classes[argmax(l.PredictProba(row))]
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func logSumExp(xs []float64) float64 {
	hi := math.Inf(-1)
	for _, x := range xs {
		if x > hi {
			hi = x
		}
	}
	if math.IsInf(hi, -1) {
		return hi
	}

	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - hi)
	}
	return hi + math.Log(sum)
}
