package similarity

import (
	"math"
	"testing"

	"github.com/pbaille/sentimen/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	a := model.Row{{Index: 0, Value: 1}, {Index: 2, Value: 1}}
	b := model.Row{{Index: 2, Value: 1}, {Index: 5, Value: 1}}

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-12)
	assert.InDelta(t, 0.5, Cosine(a, b), 1e-12)
	assert.Equal(t, 0.0, Cosine(a, nil))
	assert.Equal(t, 0.0, Cosine(a, model.Row{{Index: 1, Value: 3}}))
}

func TestCosine_ScaleInvariant(t *testing.T) {
	a := model.Row{{Index: 1, Value: 0.2}, {Index: 3, Value: 0.4}}
	b := model.Row{{Index: 1, Value: 2}, {Index: 3, Value: 4}}
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-12)
}

func TestTopK(t *testing.T) {
	query := model.Row{{Index: 0, Value: 1}}
	candidates := map[string]model.Row{
		"exact":   {{Index: 0, Value: 2}},
		"half":    {{Index: 0, Value: 1}, {Index: 1, Value: math.Sqrt(3)}},
		"none":    {{Index: 4, Value: 1}},
		"half-b":  {{Index: 0, Value: 1}, {Index: 2, Value: math.Sqrt(3)}},
		"partial": {{Index: 0, Value: 1}, {Index: 1, Value: 1}},
	}

	matches := TopK(query, candidates, 3, 0)
	assert.Len(t, matches, 3)
	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "partial", matches[1].ID)
	assert.Equal(t, "half", matches[2].ID)

	all := TopK(query, candidates, 0, 0)
	assert.Len(t, all, 4)

	strict := TopK(query, candidates, 0, 0.9)
	assert.Len(t, strict, 1)
}
