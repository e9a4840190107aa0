// Package analyzer runs review text through the loaded model and shapes the
// output for display.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pbaille/sentimen/internal/domain"
	"github.com/pbaille/sentimen/internal/labels"
	"github.com/pbaille/sentimen/internal/model"
	"go.uber.org/zap"
)

// ErrEmptyInput is returned for empty or whitespace-only reviews
var ErrEmptyInput = errors.New("review text is empty")

// Model is the inference surface the analyzer needs
type Model interface {
	Dim() int
	Classes() []int
	Infer(text string) (model.Inference, error)
}

// ClassProbability is one bar of the probability chart
type ClassProbability struct {
	Class       int     `json:"class"`
	Label       string  `json:"label"`
	Emoji       string  `json:"emoji"`
	Color       string  `json:"color"`
	Probability float64 `json:"probability"`
	Percent     string  `json:"percent"`
	Predicted   bool    `json:"predicted"`
}

// Result is a fully rendered analysis of one review
type Result struct {
	Text           string             `json:"text"`
	Class          int                `json:"class"`
	Info           labels.Info        `json:"info"`
	Known          bool               `json:"known"`
	Confidence     float64            `json:"confidence"`
	Breakdown      []ClassProbability `json:"breakdown"`
	Dimensions     int                `json:"dimensions"`
	Recommendation string             `json:"recommendation"`
	Elapsed        time.Duration      `json:"elapsed_ns"`

	row model.Row
}

// Row exposes the feature row the result was computed from
func (r *Result) Row() model.Row {
	return r.row
}

// ConfidencePercent formats the predicted class probability
func (r *Result) ConfidencePercent() string {
	return Percent(r.Confidence)
}

// Prediction converts the result into a history record for review
func (r *Result) Prediction(review domain.Review) domain.Prediction {
	probs := make([]float64, len(r.Breakdown))
	for i, b := range r.Breakdown {
		probs[i] = b.Probability
	}
	return domain.Prediction{
		Text:          review.Text,
		Source:        review.Source,
		LabelIndex:    r.Class,
		Label:         r.Info.Label,
		Confidence:    r.Confidence,
		Probabilities: probs,
	}
}

// Analyzer validates input and runs inference
type Analyzer struct {
	model  Model
	labels *labels.Table
	logger *zap.Logger
}

// New creates an Analyzer
func New(m Model, table *labels.Table, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{model: m, labels: table, logger: logger}
}

// Labels returns the active label table
func (a *Analyzer) Labels() *labels.Table {
	return a.labels
}

// Model returns the underlying model
func (a *Analyzer) Model() Model {
	return a.model
}

// Analyze classifies a review. Empty input is rejected before the model is touched.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	inf, err := a.model.Infer(text)
	if err != nil {
		a.logger.Warn("inference failed", zap.Error(err))
		if !errors.Is(err, model.ErrInference) {
			err = fmt.Errorf("%w: %v", model.ErrInference, err)
		}
		return nil, err
	}

	res := a.build(text, inf)
	res.Elapsed = time.Since(start)

	a.logger.Debug("review analyzed",
		zap.Int("class", res.Class),
		zap.String("label", res.Info.Label),
		zap.Float64("confidence", res.Confidence),
		zap.Duration("elapsed", res.Elapsed))

	return res, nil
}

func (a *Analyzer) build(text string, inf model.Inference) *Result {
	info := a.labels.Lookup(inf.Class)

	res := &Result{
		Text:           text,
		Class:          inf.Class,
		Info:           info,
		Known:          a.labels.Has(inf.Class),
		Dimensions:     a.model.Dim(),
		Recommendation: info.Recommendation,
		row:            inf.Row,
	}

	for i, class := range inf.Classes {
		ci := a.labels.Lookup(class)
		p := inf.Probabilities[i]
		res.Breakdown = append(res.Breakdown, ClassProbability{
			Class:       class,
			Label:       ci.Label,
			Emoji:       ci.Emoji,
			Color:       ci.Color,
			Probability: p,
			Percent:     Percent(p),
			Predicted:   class == inf.Class,
		})
		if class == inf.Class {
			res.Confidence = p
		}
	}

	return res
}

// Percent formats a probability with two decimals, e.g. 0.8523 -> "85.23%"
func Percent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}
