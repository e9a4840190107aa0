package similarity

import (
	"math"
	"sort"

	"github.com/pbaille/sentimen/internal/model"
)

// Cosine computes similarity between two sparse rows sorted by index
func Cosine(a, b model.Row) float64 {
	var dot, normA, normB float64

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Index == b[j].Index:
			dot += a[i].Value * b[j].Value
			i++
			j++
		case a[i].Index < b[j].Index:
			i++
		default:
			j++
		}
	}

	for _, f := range a {
		normA += f.Value * f.Value
	}
	for _, f := range b {
		normB += f.Value * f.Value
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Match is a candidate scored against a query row
type Match struct {
	ID    string
	Score float64
}

// TopK returns the k best candidates above minScore, highest first
func TopK(query model.Row, candidates map[string]model.Row, k int, minScore float64) []Match {
	var matches []Match
	for id, row := range candidates {
		score := Cosine(query, row)
		if score <= minScore {
			continue
		}
		matches = append(matches, Match{ID: id, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool { return less(matches[i], matches[j]) })

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func less(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
