package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/sentimen/internal/domain"
	"github.com/pbaille/sentimen/internal/model"
	"github.com/pbaille/sentimen/internal/similarity"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when no prediction matches an id or prefix
	ErrNotFound = errors.New("prediction not found")
	// ErrAmbiguous is returned when an id prefix matches more than one prediction
	ErrAmbiguous = errors.New("prediction id prefix is ambiguous")
)

// Store handles database operations
type Store struct {
	db *sql.DB
}

// SimilarPrediction is a stored prediction with its similarity score
type SimilarPrediction struct {
	domain.Prediction
	Score float64 `json:"score"`
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePrediction records an analysis and returns it with its new id
func (s *Store) SavePrediction(p domain.Prediction) (*domain.Prediction, error) {
	p.ID = uuid.New().String()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Source == "" {
		p.Source = domain.SourceTyped
	}

	probs, err := json.Marshal(p.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("marshal probabilities: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO predictions (id, text, source, label_index, label, confidence, probabilities, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Text, string(p.Source), p.LabelIndex, p.Label, p.Confidence, string(probs), p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert prediction: %w", err)
	}

	return &p, nil
}

// GetPrediction retrieves a prediction by full id or unique id prefix
func (s *Store) GetPrediction(idOrPrefix string) (*domain.Prediction, error) {
	if idOrPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	// Compared literally; LIKE would treat % and _ in the prefix as wildcards.
	rows, err := s.db.Query(
		`SELECT id, text, source, label_index, label, confidence, probabilities, created_at
		 FROM predictions WHERE substr(id, 1, length(?)) = ? LIMIT 2`,
		idOrPrefix, idOrPrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	defer rows.Close()

	found, err := scanPredictions(rows)
	if err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case 1:
		return &found[0], nil
	default:
		for i := range found {
			if found[i].ID == idOrPrefix {
				return &found[i], nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, idOrPrefix)
	}
}

// ListPredictions returns recent predictions with pagination
func (s *Store) ListPredictions(limit, offset int) ([]domain.Prediction, error) {
	rows, err := s.db.Query(
		`SELECT id, text, source, label_index, label, confidence, probabilities, created_at
		 FROM predictions ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// SearchPredictions performs a simple text search
func (s *Store) SearchPredictions(query string) ([]domain.Prediction, error) {
	rows, err := s.db.Query(
		`SELECT id, text, source, label_index, label, confidence, probabilities, created_at
		 FROM predictions WHERE text LIKE ? ORDER BY created_at DESC`,
		"%"+query+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("search predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// CountByLabel returns how many stored predictions fall in each class
func (s *Store) CountByLabel() ([]domain.LabelCount, error) {
	rows, err := s.db.Query(
		`SELECT label_index, label, COUNT(*) FROM predictions
		 GROUP BY label_index, label ORDER BY label_index`,
	)
	if err != nil {
		return nil, fmt.Errorf("count by label: %w", err)
	}
	defer rows.Close()

	var counts []domain.LabelCount
	for rows.Next() {
		var c domain.LabelCount
		if err := rows.Scan(&c.LabelIndex, &c.Label, &c.Count); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// SaveVector stores the feature row a prediction was computed from
func (s *Store) SaveVector(predictionID string, row model.Row, dim int) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO prediction_vectors (prediction_id, vector, dim) VALUES (?, ?, ?)",
		predictionID, string(data), dim,
	)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector loads the stored feature row of a prediction
func (s *Store) GetVector(predictionID string) (model.Row, error) {
	var data string
	err := s.db.QueryRow(
		"SELECT vector FROM prediction_vectors WHERE prediction_id = ?",
		predictionID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no vector for %s", ErrNotFound, predictionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}

	var row model.Row
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	return row, nil
}

// FindSimilar returns up to k stored predictions whose rows are closest to the query.
// Only rows of the same dimension are compared; excludeID is skipped.
func (s *Store) FindSimilar(query model.Row, dim, k int, excludeID string) ([]SimilarPrediction, error) {
	rows, err := s.db.Query(
		"SELECT prediction_id, vector FROM prediction_vectors WHERE dim = ? AND prediction_id != ?",
		dim, excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	candidates := make(map[string]model.Row)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		var row model.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshal vector %s: %w", id, err)
		}
		candidates[id] = row
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}
	rows.Close()

	var similar []SimilarPrediction
	for _, m := range similarity.TopK(query, candidates, k, 0) {
		p, err := s.GetPrediction(m.ID)
		if err != nil {
			return nil, err
		}
		similar = append(similar, SimilarPrediction{Prediction: *p, Score: m.Score})
	}

	return similar, nil
}

func scanPredictions(rows *sql.Rows) ([]domain.Prediction, error) {
	var predictions []domain.Prediction
	for rows.Next() {
		var (
			p      domain.Prediction
			source string
			probs  string
		)
		if err := rows.Scan(&p.ID, &p.Text, &source, &p.LabelIndex, &p.Label, &p.Confidence, &probs, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		p.Source = domain.Source(source)
		if err := json.Unmarshal([]byte(probs), &p.Probabilities); err != nil {
			return nil, fmt.Errorf("unmarshal probabilities: %w", err)
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}
