package model

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrArtifact marks a model artifact that could not be decoded or is inconsistent
	ErrArtifact = errors.New("invalid model artifact")
	// ErrInference marks a failure while running the classifier
	ErrInference = errors.New("inference failed")
)

// Inference is the output of one pass through the pipeline
type Inference struct {
	Row           Row       `json:"-"`
	Class         int       `json:"class"`
	Classes       []int     `json:"classes"`
	Probabilities []float64 `json:"probabilities"`
}

// Pipeline pairs a fitted vectorizer with a fitted classifier
type Pipeline struct {
	Vectorizer *Vectorizer
	Classifier Classifier
}

// Load reads both artifacts and checks that they belong together
func Load(vectorizerPath, classifierPath string) (*Pipeline, error) {
	vec, err := LoadVectorizer(vectorizerPath)
	if err != nil {
		return nil, err
	}

	clf, err := LoadClassifier(classifierPath)
	if err != nil {
		return nil, err
	}

	return NewPipeline(vec, clf)
}

// NewPipeline checks that the classifier was fitted on the vectorizer's feature space
func NewPipeline(vec *Vectorizer, clf Classifier) (*Pipeline, error) {
	if vec.Dim() != clf.Dim() {
		return nil, fmt.Errorf("%w: vectorizer emits %d features but classifier expects %d",
			ErrArtifact, vec.Dim(), clf.Dim())
	}
	return &Pipeline{Vectorizer: vec, Classifier: clf}, nil
}

// Dim returns the width of the feature space
func (p *Pipeline) Dim() int {
	return p.Vectorizer.Dim()
}

// Classes returns the classifier's output labels
func (p *Pipeline) Classes() []int {
	return p.Classifier.Classes()
}

// Infer runs transform, predict and predict_proba on a single text
func (p *Pipeline) Infer(text string) (inf Inference, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInference, r)
		}
	}()

	row := p.Vectorizer.Transform([]string{text})[0]
	class := p.Classifier.Predict(row)
	probs := p.Classifier.PredictProba(row)

	if len(probs) != len(p.Classifier.Classes()) {
		return Inference{}, fmt.Errorf("%w: %d probabilities for %d classes",
			ErrInference, len(probs), len(p.Classifier.Classes()))
	}

	return Inference{
		Row:           row,
		Class:         class,
		Classes:       p.Classifier.Classes(),
		Probabilities: probs,
	}, nil
}

// Cache loads the artifact pair once and shares it for the life of the process
type Cache struct {
	vectorizerPath string
	classifierPath string

	once     sync.Once
	pipeline *Pipeline
	err      error
}

// NewCache creates a Cache for the given artifact paths
func NewCache(vectorizerPath, classifierPath string) *Cache {
	return &Cache{vectorizerPath: vectorizerPath, classifierPath: classifierPath}
}

// Get returns the cached pipeline, loading it on first use
func (c *Cache) Get() (*Pipeline, error) {
	c.once.Do(func() {
		c.pipeline, c.err = Load(c.vectorizerPath, c.classifierPath)
	})
	return c.pipeline, c.err
}
