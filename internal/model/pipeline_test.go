package model

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVectorizerPath = "testdata/tfidf_vectorizer.json"
	testClassifierPath = "testdata/naive_bayes_model.json"
)

func TestLoad(t *testing.T) {
	p, err := Load(testVectorizerPath, testClassifierPath)
	require.NoError(t, err)

	assert.Equal(t, 6, p.Dim())
	assert.Equal(t, []int{0, 1, 2}, p.Classes())
}

func TestInfer(t *testing.T) {
	p, err := Load(testVectorizerPath, testClassifierPath)
	require.NoError(t, err)

	tests := []struct {
		text string
		want int
	}{
		{"Pelayanan bagus dan cepat!", 0},
		{"Produk datang lambat dan rusak.", 1},
		{"Cukup standar, biasa saja.", 2},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			inf, err := p.Infer(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, inf.Class)
			assert.Len(t, inf.Probabilities, 3)

			var total float64
			for _, prob := range inf.Probabilities {
				total += prob
			}
			assert.InDelta(t, 1.0, total, 1e-9)
		})
	}
}

func TestInfer_Deterministic(t *testing.T) {
	text := "bagus tapi agak lambat"

	first, err := Load(testVectorizerPath, testClassifierPath)
	require.NoError(t, err)
	want, err := first.Infer(text)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		p, err := Load(testVectorizerPath, testClassifierPath)
		require.NoError(t, err)
		got, err := p.Infer(text)
		require.NoError(t, err)
		assert.Equal(t, want.Class, got.Class)
		assert.Equal(t, want.Probabilities, got.Probabilities)
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	clf := filepath.Join(dir, "clf.json")
	require.NoError(t, os.WriteFile(clf, []byte(
		`{"type":"multinomial_nb","classes":[0,1],"class_log_prior":[-0.69,-0.69],"feature_log_prob":[[-1,-1],[-1,-1]]}`,
	), 0644))

	_, err := Load(testVectorizerPath, clf)
	assert.ErrorIs(t, err, ErrArtifact)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), testClassifierPath)
	assert.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type panicClassifier struct{ *NaiveBayes }

func (panicClassifier) Predict(Row) int { panic("corrupt weights") }

func TestInfer_RecoversPanic(t *testing.T) {
	vec, err := LoadVectorizer(testVectorizerPath)
	require.NoError(t, err)
	nb, err := LoadClassifier(testClassifierPath)
	require.NoError(t, err)

	p, err := NewPipeline(vec, panicClassifier{nb.(*NaiveBayes)})
	require.NoError(t, err)

	_, err = p.Infer("bagus")
	assert.ErrorIs(t, err, ErrInference)
}

func TestCache_LoadsOnce(t *testing.T) {
	c := NewCache(testVectorizerPath, testClassifierPath)

	var wg sync.WaitGroup
	results := make([]*Pipeline, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.Get()
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range results {
		assert.Same(t, results[0], p)
	}
}

func TestCache_RemembersError(t *testing.T) {
	c := NewCache("testdata/nope.json", testClassifierPath)

	_, err1 := c.Get()
	_, err2 := c.Get()
	assert.Error(t, err1)
	assert.Equal(t, err1, err2)
}
