package search

import (
	"io"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/questionsim/internal/arabic"
)

// SimilarityResult is a scored corpus position.
type SimilarityResult struct {
	Position int
	Score    float64
}

// Band buckets a similarity percentage for display.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandFor maps a percentage to its display band.
func BandFor(percent float64) Band {
	switch {
	case percent >= 70:
		return BandHigh
	case percent >= 40:
		return BandMedium
	default:
		return BandLow
	}
}

// Match is a result row resolved against the corpus.
type Match struct {
	Position int     `json:"index"`
	ID       string  `json:"id"`
	Text     string  `json:"question"`
	Score    float64 `json:"score"`
	Percent  float64 `json:"percent"`
	Band     Band    `json:"band"`
}

// Index answers nearest-neighbour queries over a fixed corpus snapshot.
// Fit replaces the snapshot wholesale. An Index is not safe for a Fit
// concurrent with anything else; queries alone may run concurrently.
type Index struct {
	Vectorizer Vectorizer

	normalize func(string) string
	logger    *logrus.Entry

	questions  []Question
	normalized []string
	vectors    []SparseVector
	norms      []float64
	fitted     bool
}

// Option configures an Index.
type Option func(*indexOptions)

type indexOptions struct {
	minN        int
	maxN        int
	maxFeatures int
	vectorizer  Vectorizer
	normalize   func(string) string
	logger      *logrus.Entry
}

// WithNgramRange sets the inclusive character n-gram lengths.
func WithNgramRange(minN, maxN int) Option {
	return func(o *indexOptions) {
		o.minN = minN
		o.maxN = maxN
	}
}

// WithMaxFeatures caps the vocabulary size.
func WithMaxFeatures(n int) Option {
	return func(o *indexOptions) {
		o.maxFeatures = n
	}
}

// WithVectorizer replaces the default TF-IDF vectorizer. N-gram and
// feature options are ignored when set.
func WithVectorizer(v Vectorizer) Option {
	return func(o *indexOptions) {
		o.vectorizer = v
	}
}

// WithNormalizer replaces the Arabic normalizer.
func WithNormalizer(fn func(string) string) Option {
	return func(o *indexOptions) {
		o.normalize = fn
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(o *indexOptions) {
		o.logger = logger
	}
}

func NewIndex(opts ...Option) *Index {
	o := indexOptions{
		minN:        DefaultNgramMin,
		maxN:        DefaultNgramMax,
		maxFeatures: DefaultMaxFeatures,
		normalize:   arabic.Normalize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.vectorizer == nil {
		o.vectorizer = NewTFIDFVectorizer(o.minN, o.maxN, o.maxFeatures)
	}
	if o.logger == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		o.logger = logrus.NewEntry(silent)
	}
	return &Index{
		Vectorizer: o.vectorizer,
		normalize:  o.normalize,
		logger:     o.logger,
	}
}

// Fit normalizes every question, learns the vocabulary and builds the
// document vectors. Row i always corresponds to questions[i].
func (ix *Index) Fit(questions []Question) {
	start := time.Now()

	ix.questions = append([]Question(nil), questions...)
	ix.normalized = make([]string, len(questions))
	for i, q := range questions {
		ix.normalized[i] = ix.normalize(q.Text)
	}

	ix.Vectorizer.Fit(ix.normalized)

	ix.vectors = make([]SparseVector, len(questions))
	ix.norms = make([]float64, len(questions))
	empty := 0
	for i, doc := range ix.normalized {
		vec := ix.Vectorizer.Transform(doc)
		ix.vectors[i] = vec
		ix.norms[i] = vec.Norm()
		if vec.Len() == 0 {
			empty++
		}
	}
	ix.fitted = true

	ix.logger.WithFields(logrus.Fields{
		"questions":  len(questions),
		"vocabulary": ix.Vectorizer.VocabularySize(),
		"empty_rows": empty,
		"duration":   time.Since(start).String(),
	}).Debug("Similarity index fitted")
}

// GetSimilar ranks every other question against the one at pos by cosine
// similarity. Zero scores and pos itself are never returned. Ties keep
// ascending position order. Out-of-range positions and unfitted indexes
// yield an empty result.
func (ix *Index) GetSimilar(pos, topN int) []SimilarityResult {
	results := make([]SimilarityResult, 0)
	if !ix.fitted || pos < 0 || pos >= len(ix.vectors) || topN <= 0 {
		return results
	}

	query, queryNorm := ix.vectors[pos], ix.norms[pos]
	if queryNorm == 0 {
		return results
	}

	for i, vec := range ix.vectors {
		if i == pos {
			continue
		}
		score := cosine(query, vec, queryNorm, ix.norms[i])
		if score > 0 {
			results = append(results, SimilarityResult{Position: i, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Position < results[j].Position
	})

	if len(results) > topN {
		return results[:topN]
	}
	return results
}

// Query returns the topN neighbours of pos whose percentage score
// (score * 100) reaches thresholdPercent. The threshold is clamped to
// [0, 100].
func (ix *Index) Query(pos, topN int, thresholdPercent float64) []Match {
	threshold := ClampThreshold(thresholdPercent)
	hits := ix.GetSimilar(pos, topN)

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		percent := hit.Score * 100
		if percent < threshold {
			continue
		}
		q := ix.questions[hit.Position]
		matches = append(matches, Match{
			Position: hit.Position,
			ID:       q.ID,
			Text:     q.Text,
			Score:    hit.Score,
			Percent:  percent,
			Band:     BandFor(percent),
		})
	}
	return matches
}

// ClampThreshold bounds a percentage threshold to [0, 100]. NaN maps to 0.
func ClampThreshold(threshold float64) float64 {
	switch {
	case math.IsNaN(threshold), threshold < 0:
		return 0
	case threshold > 100:
		return 100
	default:
		return threshold
	}
}

// Fitted reports whether Fit has been called.
func (ix *Index) Fitted() bool {
	return ix.fitted
}

func (ix *Index) Len() int {
	return len(ix.questions)
}

func (ix *Index) VocabularySize() int {
	return ix.Vectorizer.VocabularySize()
}

// Question returns the question at pos.
func (ix *Index) Question(pos int) (Question, bool) {
	if pos < 0 || pos >= len(ix.questions) {
		return Question{}, false
	}
	return ix.questions[pos], true
}

// Normalized returns the cached normalized text at pos.
func (ix *Index) Normalized(pos int) (string, bool) {
	if pos < 0 || pos >= len(ix.normalized) {
		return "", false
	}
	return ix.normalized[pos], true
}

// Questions returns a copy of the fitted corpus.
func (ix *Index) Questions() []Question {
	return append([]Question(nil), ix.questions...)
}
