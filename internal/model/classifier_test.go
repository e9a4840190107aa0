package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func testNaiveBayes(t *testing.T) *NaiveBayes {
	t.Helper()
	hi, lo := math.Log(0.6), math.Log(0.2)
	prior := math.Log(1.0 / 3)
	nb, err := NewNaiveBayes(NaiveBayesArtifact{
		Classes:       []int{0, 1, 2},
		ClassLogPrior: []float64{prior, prior, prior},
		FeatureLogProb: [][]float64{
			{hi, lo, lo},
			{lo, hi, lo},
			{lo, lo, hi},
		},
	})
	require.NoError(t, err)
	return nb
}

func TestNaiveBayes_Predict(t *testing.T) {
	nb := testNaiveBayes(t)

	assert.Equal(t, 0, nb.Predict(Row{{Index: 0, Value: 1}}))
	assert.Equal(t, 1, nb.Predict(Row{{Index: 1, Value: 1}}))
	assert.Equal(t, 2, nb.Predict(Row{{Index: 2, Value: 0.9}, {Index: 0, Value: 0.1}}))
}

func TestNaiveBayes_ProbabilitiesSumToOne(t *testing.T) {
	nb := testNaiveBayes(t)

	rows := []Row{
		nil,
		{{Index: 0, Value: 1}},
		{{Index: 0, Value: 0.3}, {Index: 1, Value: 0.3}, {Index: 2, Value: 0.9}},
		{{Index: 2, Value: 500}},
	}
	for _, row := range rows {
		probs := nb.PredictProba(row)
		require.Len(t, probs, 3)
		assert.InDelta(t, 1.0, sum(probs), 1e-9)
		for _, p := range probs {
			assert.False(t, math.IsNaN(p))
		}
	}
}

func TestNaiveBayes_EmptyRowFollowsPrior(t *testing.T) {
	nb, err := NewNaiveBayes(NaiveBayesArtifact{
		Classes:        []int{0, 1},
		ClassLogPrior:  []float64{math.Log(0.25), math.Log(0.75)},
		FeatureLogProb: [][]float64{{0}, {0}},
	})
	require.NoError(t, err)

	probs := nb.PredictProba(nil)
	assert.InDelta(t, 0.25, probs[0], 1e-12)
	assert.InDelta(t, 0.75, probs[1], 1e-12)
	assert.Equal(t, 1, nb.Predict(nil))
}

func TestNewNaiveBayes_Invalid(t *testing.T) {
	_, err := NewNaiveBayes(NaiveBayesArtifact{Classes: []int{0}})
	assert.ErrorIs(t, err, ErrArtifact)

	_, err = NewNaiveBayes(NaiveBayesArtifact{
		Classes:        []int{0, 1},
		ClassLogPrior:  []float64{0, 0},
		FeatureLogProb: [][]float64{{0, 0}, {0}},
	})
	assert.ErrorIs(t, err, ErrArtifact)
}

func TestLogistic_Multiclass(t *testing.T) {
	l, err := NewLogistic(LogisticArtifact{
		Classes:   []int{0, 1, 2},
		Coef:      [][]float64{{3, 0}, {0, 3}, {0, 0}},
		Intercept: []float64{0, 0, 0.5},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, l.Predict(Row{{Index: 0, Value: 1}}))
	assert.Equal(t, 1, l.Predict(Row{{Index: 1, Value: 1}}))
	assert.Equal(t, 2, l.Predict(nil))
	assert.InDelta(t, 1.0, sum(l.PredictProba(Row{{Index: 0, Value: 0.4}})), 1e-9)
}

func TestLogistic_Binary(t *testing.T) {
	l, err := NewLogistic(LogisticArtifact{
		Classes:   []int{0, 1},
		Coef:      [][]float64{{2}},
		Intercept: []float64{0},
	})
	require.NoError(t, err)

	probs := l.PredictProba(nil)
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[1], 1e-12)

	assert.Equal(t, 1, l.Predict(Row{{Index: 0, Value: 1}}))
}

func TestDecodeClassifier(t *testing.T) {
	clf, err := DecodeClassifier([]byte(`{"classes":[0,1],"class_log_prior":[-0.7,-0.7],"feature_log_prob":[[-1],[-2]]}`))
	require.NoError(t, err)
	assert.Equal(t, "multinomial_nb", clf.Type())

	clf, err = DecodeClassifier([]byte(`{"type":"logistic_regression","classes":[1,2],"coef":[[1]],"intercept":[0]}`))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, clf.Classes())

	_, err = DecodeClassifier([]byte(`{"type":"svm"}`))
	assert.ErrorIs(t, err, ErrArtifact)

	_, err = DecodeClassifier([]byte(`not json`))
	assert.ErrorIs(t, err, ErrArtifact)
}
