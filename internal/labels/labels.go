// Package labels maps classifier output indices to what the dashboard shows.
package labels

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Info is the display record for one sentiment class
type Info struct {
	Emoji          string `yaml:"emoji" json:"emoji"`
	Label          string `yaml:"label" json:"label"`
	Color          string `yaml:"color" json:"color"`
	Recommendation string `yaml:"recommendation" json:"recommendation"`
}

// Fallback is shown for classes the table does not know
var Fallback = Info{
	Emoji:          "❓",
	Label:          "Tidak Dikenali",
	Color:          "#95a5a6",
	Recommendation: "Analisis sentimen selesai.",
}

// Table maps class indices to display records
type Table struct {
	entries map[int]Info
}

// Default returns the built-in Indonesian table
func Default() *Table {
	return &Table{entries: map[int]Info{
		0: {
			Emoji:          "😊",
			Label:          "Positif",
			Color:          "#2ecc71",
			Recommendation: "✅ Pertahankan kualitas layanan! Ulasan positif menunjukkan kepuasan pelanggan.",
		},
		1: {
			Emoji:          "😞",
			Label:          "Negatif",
			Color:          "#e74c3c",
			Recommendation: "❌ Perlu perbaikan! Identifikasi masalah dan siapkan solusi untuk keluhan pelanggan.",
		},
		2: {
			Emoji:          "😐",
			Label:          "Netral",
			Color:          "#3498db",
			Recommendation: "🔍 Tingkatkan engagement! Ulasan netral bisa dioptimalkan untuk meningkatkan kepuasan.",
		},
	}}
}

// New builds a table from explicit entries
func New(entries map[int]Info) *Table {
	t := &Table{entries: make(map[int]Info, len(entries))}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

// LoadFile reads a table from a YAML file of the form
//
//	labels:
//	  0: {emoji: "😊", label: Positif, color: "#2ecc71", recommendation: "..."}
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading labels file: %w", err)
	}

	var doc struct {
		Labels map[int]Info `yaml:"labels"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing labels file: %w", err)
	}
	if len(doc.Labels) == 0 {
		return nil, fmt.Errorf("labels file %s defines no labels", path)
	}

	for idx, info := range doc.Labels {
		if info.Label == "" {
			return nil, fmt.Errorf("label %d has no name", idx)
		}
		if info.Color == "" {
			info.Color = Fallback.Color
		}
		if info.Recommendation == "" {
			info.Recommendation = Fallback.Recommendation
		}
		doc.Labels[idx] = info
	}

	return New(doc.Labels), nil
}

// Lookup returns the display record for a class, or Fallback
func (t *Table) Lookup(class int) Info {
	if info, ok := t.entries[class]; ok {
		return info
	}
	return Fallback
}

// Has reports whether the class has its own entry
func (t *Table) Has(class int) bool {
	_, ok := t.entries[class]
	return ok
}

// Missing lists the classes the table does not cover
func (t *Table) Missing(classes []int) []int {
	var missing []int
	for _, c := range classes {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ErrUncovered means a strict check found classes without their own entry
var ErrUncovered = errors.New("label table does not cover classifier classes")

// Check returns the uncovered classes. When strict, any gap is an error.
func (t *Table) Check(classes []int, strict bool) ([]int, error) {
	missing := t.Missing(classes)
	if len(missing) > 0 && strict {
		return missing, fmt.Errorf("%w %v", ErrUncovered, missing)
	}
	return missing, nil
}

// Indices returns the table's keys in ascending order
func (t *Table) Indices() []int {
	keys := make([]int, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
