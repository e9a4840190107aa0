package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// defaultTokenPattern is scikit-learn's default: words of two or more characters.
const defaultTokenPattern = `(?u)\b\w\w+\b`

// Feature is one non-zero entry of a sparse row
type Feature struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Row is a sparse feature vector sorted by index
type Row []Feature

// VectorizerArtifact is the JSON export of a fitted TF-IDF vectorizer
type VectorizerArtifact struct {
	Lowercase    *bool          `json:"lowercase,omitempty"`
	TokenPattern string         `json:"token_pattern,omitempty"`
	NgramRange   [2]int         `json:"ngram_range"`
	StopWords    []string       `json:"stop_words,omitempty"`
	SublinearTF  bool           `json:"sublinear_tf"`
	UseIDF       *bool          `json:"use_idf,omitempty"`
	Norm         Norm           `json:"norm,omitempty"`
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf,omitempty"`
}

// Norm names the row normalization. An absent norm means l2.
type Norm string

const (
	NormL1   Norm = "l1"
	NormL2   Norm = "l2"
	NormNone Norm = "none"
)

// UnmarshalJSON decodes a JSON null as NormNone, which is how norm=None is exported
func (n *Norm) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NormNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*n = Norm(s)
	return nil
}

// Vectorizer turns raw text into TF-IDF rows
type Vectorizer struct {
	lowercase   bool
	pattern     *regexp2.Regexp // nil means the default word tokenizer
	grouped     bool            // pattern has one capturing group; tokens are its submatch
	minN, maxN  int
	stopWords   map[string]struct{}
	sublinearTF bool
	useIDF      bool
	norm        Norm
	vocabulary  map[string]int
	idf         []float64
	dim         int
}

// LoadVectorizer reads a vectorizer artifact from disk
func LoadVectorizer(path string) (*Vectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vectorizer: %w", err)
	}

	var a VectorizerArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse vectorizer %s: %v", ErrArtifact, path, err)
	}

	return NewVectorizer(a)
}

// NewVectorizer validates an artifact and builds a Vectorizer from it
func NewVectorizer(a VectorizerArtifact) (*Vectorizer, error) {
	if len(a.Vocabulary) == 0 {
		return nil, fmt.Errorf("%w: vectorizer has an empty vocabulary", ErrArtifact)
	}

	v := &Vectorizer{
		lowercase:   a.Lowercase == nil || *a.Lowercase,
		minN:        a.NgramRange[0],
		maxN:        a.NgramRange[1],
		sublinearTF: a.SublinearTF,
		useIDF:      a.UseIDF == nil || *a.UseIDF,
		norm:        a.Norm,
		vocabulary:  a.Vocabulary,
		idf:         a.IDF,
	}

	if v.minN == 0 && v.maxN == 0 {
		v.minN, v.maxN = 1, 1
	}
	if v.minN < 1 || v.maxN < v.minN {
		return nil, fmt.Errorf("%w: invalid ngram range %v", ErrArtifact, a.NgramRange)
	}

	switch v.norm {
	case "":
		v.norm = NormL2
	case NormL1, NormL2, NormNone:
	default:
		return nil, fmt.Errorf("%w: unsupported norm %q", ErrArtifact, a.Norm)
	}

	for _, idx := range a.Vocabulary {
		if idx < 0 {
			return nil, fmt.Errorf("%w: negative vocabulary index %d", ErrArtifact, idx)
		}
		if idx+1 > v.dim {
			v.dim = idx + 1
		}
	}

	if v.useIDF && len(v.idf) != v.dim {
		return nil, fmt.Errorf("%w: idf has %d weights for %d features", ErrArtifact, len(v.idf), v.dim)
	}

	if a.TokenPattern != "" && a.TokenPattern != defaultTokenPattern {
		re, err := regexp2.Compile(translatePattern(a.TokenPattern), regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("%w: token pattern: %v", ErrArtifact, err)
		}
		switch len(re.GetGroupNumbers()) {
		case 1:
		case 2:
			v.grouped = true
		default:
			return nil, fmt.Errorf("%w: token pattern %q has more than one capturing group", ErrArtifact, a.TokenPattern)
		}
		v.pattern = re
	}

	if len(a.StopWords) > 0 {
		v.stopWords = make(map[string]struct{}, len(a.StopWords))
		for _, w := range a.StopWords {
			v.stopWords[w] = struct{}{}
		}
	}

	return v, nil
}

// Dim returns the width of the feature space
func (v *Vectorizer) Dim() int {
	return v.dim
}

// Transform vectorizes each text into a sparse row
func (v *Vectorizer) Transform(texts []string) []Row {
	rows := make([]Row, len(texts))
	for i, t := range texts {
		rows[i] = v.transformOne(t)
	}
	return rows
}

func (v *Vectorizer) transformOne(text string) Row {
	counts := make(map[int]float64)
	for _, term := range v.analyze(text) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}

	row := make(Row, 0, len(counts))
	for idx, tf := range counts {
		if v.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		if v.useIDF {
			tf *= v.idf[idx]
		}
		row = append(row, Feature{Index: idx, Value: tf})
	}
	sort.Slice(row, func(i, j int) bool { return row[i].Index < row[j].Index })

	normalize(row, v.norm)
	return row
}

// analyze produces the terms counted against the vocabulary
func (v *Vectorizer) analyze(text string) []string {
	if v.lowercase {
		text = strings.ToLower(text)
	}

	var tokens []string
	if v.pattern != nil {
		tokens = v.findTokens(text)
	} else {
		tokens = wordTokens(text)
	}

	if v.stopWords != nil {
		kept := tokens[:0]
		for _, tok := range tokens {
			if _, stop := v.stopWords[tok]; !stop {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}

	if v.minN == 1 && v.maxN == 1 {
		return tokens
	}

	var terms []string
	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// findTokens returns every match of a custom token pattern, left to right
func (v *Vectorizer) findTokens(text string) []string {
	var tokens []string
	m, err := v.pattern.FindStringMatch(text)
	for err == nil && m != nil {
		if v.grouped {
			tokens = append(tokens, m.GroupByNumber(1).String())
		} else {
			tokens = append(tokens, m.String())
		}
		m, err = v.pattern.FindNextMatch(m)
	}
	return tokens
}

// isWordRune matches Python's str \w: alphanumerics in the str.isalnum sense, plus underscore.
// Combining marks are not word runes.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// wordTokens splits on non-word runes and keeps runs of two or more word runes
func wordTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) })
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// translatePattern rewrites a Python token pattern for regexp2.
// Inline (?u) is implied and \w, \W are narrowed to Python's word class;
// \b, \d and \s are already Unicode aware.
func translatePattern(p string) string {
	p = strings.ReplaceAll(p, "(?u)", "")

	var sb strings.Builder
	inClass := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			next := p[i+1]
			switch {
			case next == 'w' && inClass:
				sb.WriteString(`\p{L}\p{N}_`)
			case next == 'w':
				sb.WriteString(`[\p{L}\p{N}_]`)
			case next == 'W' && !inClass:
				sb.WriteString(`[^\p{L}\p{N}_]`)
			default:
				sb.WriteByte(c)
				sb.WriteByte(next)
			}
			i++
		case c == '[' && !inClass:
			inClass = true
			sb.WriteByte(c)
		case c == ']' && inClass:
			inClass = false
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func normalize(row Row, norm Norm) {
	var total float64
	switch norm {
	case NormL1:
		for _, f := range row {
			total += math.Abs(f.Value)
		}
	case NormL2:
		for _, f := range row {
			total += f.Value * f.Value
		}
		total = math.Sqrt(total)
	default:
		return
	}

	if total == 0 {
		return
	}
	for i := range row {
		row[i].Value /= total
	}
}
