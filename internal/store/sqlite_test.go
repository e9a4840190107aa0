package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/sentimen/internal/domain"
	"github.com/pbaille/sentimen/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func save(t *testing.T, s *Store, text string, label int, name string, at time.Time) *domain.Prediction {
	t.Helper()
	p, err := s.SavePrediction(domain.Prediction{
		Text:          text,
		LabelIndex:    label,
		Label:         name,
		Confidence:    0.8,
		Probabilities: []float64{0.8, 0.1, 0.1},
		CreatedAt:     at,
	})
	require.NoError(t, err)
	return p
}

func TestSaveAndGetPrediction(t *testing.T) {
	s := newTestStore(t)

	saved := save(t, s, "Pelayanan sangat memuaskan", 0, "Positif", time.Now())
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, domain.SourceTyped, saved.Source)

	got, err := s.GetPrediction(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Text, got.Text)
	assert.Equal(t, "Positif", got.Label)
	assert.Equal(t, []float64{0.8, 0.1, 0.1}, got.Probabilities)

	byPrefix, err := s.GetPrediction(saved.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byPrefix.ID)
}

func TestGetPrediction_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPrediction("deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPrediction_PrefixIsLiteral(t *testing.T) {
	s := newTestStore(t)
	save(t, s, "Barang bagus", 0, "Positif", time.Now())

	for _, prefix := range []string{"%", "________", "_", "%%", ""} {
		t.Run(prefix, func(t *testing.T) {
			_, err := s.GetPrediction(prefix)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestGetPrediction_Ambiguous(t *testing.T) {
	s := newTestStore(t)
	save(t, s, "a", 0, "Positif", time.Now())
	save(t, s, "b", 0, "Positif", time.Now())

	_, err := s.GetPrediction("")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestListPredictions_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Add(-time.Hour)

	save(t, s, "first", 0, "Positif", base)
	save(t, s, "second", 1, "Negatif", base.Add(time.Minute))
	save(t, s, "third", 2, "Netral", base.Add(2*time.Minute))

	list, err := s.ListPredictions(2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Text)
	assert.Equal(t, "second", list[1].Text)

	rest, err := s.ListPredictions(10, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "first", rest[0].Text)
}

func TestSearchAndCount(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	save(t, s, "Produk rusak", 1, "Negatif", now)
	save(t, s, "Pengiriman lambat, produk rusak", 1, "Negatif", now)
	save(t, s, "Bagus sekali", 0, "Positif", now)

	found, err := s.SearchPredictions("rusak")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	counts, err := s.CountByLabel()
	require.NoError(t, err)
	assert.Equal(t, []domain.LabelCount{
		{LabelIndex: 0, Label: "Positif", Count: 1},
		{LabelIndex: 1, Label: "Negatif", Count: 2},
	}, counts)
}

func TestVectorsAndFindSimilar(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	a := save(t, s, "bagus cepat", 0, "Positif", now)
	b := save(t, s, "bagus", 0, "Positif", now)
	c := save(t, s, "rusak", 1, "Negatif", now)

	require.NoError(t, s.SaveVector(a.ID, model.Row{{Index: 0, Value: 0.7}, {Index: 1, Value: 0.7}}, 6))
	require.NoError(t, s.SaveVector(b.ID, model.Row{{Index: 0, Value: 1}}, 6))
	require.NoError(t, s.SaveVector(c.ID, model.Row{{Index: 2, Value: 1}}, 6))

	row, err := s.GetVector(b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Row{{Index: 0, Value: 1}}, row)

	similar, err := s.FindSimilar(model.Row{{Index: 0, Value: 1}}, 6, 5, b.ID)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, a.ID, similar[0].ID)
	assert.InDelta(t, 0.7071, similar[0].Score, 1e-3)

	// different feature space is never compared
	other, err := s.FindSimilar(model.Row{{Index: 0, Value: 1}}, 10, 5, "")
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = s.GetVector("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
