package domain

import "time"

// Source tells where a review's text came from
type Source string

const (
	SourceTyped   Source = "typed"
	SourceExample Source = "example"
	SourceURL     Source = "url"
	SourceCLI     Source = "cli"
)

// Review is a piece of customer feedback submitted for analysis
type Review struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	URL    string `json:"url,omitempty"`
}

// Prediction is a stored analysis result
type Prediction struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Source        Source    `json:"source"`
	LabelIndex    int       `json:"label_index"`
	Label         string    `json:"label"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
	CreatedAt     time.Time `json:"created_at"`
}

// LabelCount is the number of stored predictions per label
type LabelCount struct {
	LabelIndex int    `json:"label_index"`
	Label      string `json:"label"`
	Count      int    `json:"count"`
}
