package search

import (
	"math"
	"sort"
)

const (
	DefaultNgramMin    = 2
	DefaultNgramMax    = 4
	DefaultMaxFeatures = 5000
)

// Vectorizer turns text into a vector
type Vectorizer interface {
	Fit(docs []string)
	Transform(text string) SparseVector
	VocabularySize() int
}

// TFIDFVectorizer weights character n-grams by term frequency times
// smoothed inverse document frequency.
type TFIDFVectorizer struct {
	MinN        int
	MaxN        int
	MaxFeatures int

	Vocabulary map[string]int
	IDF        []float64
}

func NewTFIDFVectorizer(minN, maxN, maxFeatures int) *TFIDFVectorizer {
	return &TFIDFVectorizer{
		MinN:        minN,
		MaxN:        maxN,
		MaxFeatures: maxFeatures,
		Vocabulary:  make(map[string]int),
	}
}

type termStats struct {
	term      string
	idf       float64
	relevance float64
}

// Fit analyzes the corpus to build vocabulary and IDF stats. Any
// previously learned state is discarded.
func (v *TFIDFVectorizer) Fit(docs []string) {
	docCount := float64(len(docs))
	termCounts := make(map[string]int)
	docCounts := make(map[string]int)

	for _, doc := range docs {
		seenInDoc := make(map[string]bool)
		for _, gram := range CharNgrams(doc, v.MinN, v.MaxN) {
			termCounts[gram]++
			if !seenInDoc[gram] {
				docCounts[gram]++
				seenInDoc[gram] = true
			}
		}
	}

	stats := make([]termStats, 0, len(docCounts))
	for term, df := range docCounts {
		// idf = ln((1 + N) / (1 + df)) + 1
		idf := math.Log((1+docCount)/(1+float64(df))) + 1
		stats = append(stats, termStats{
			term:      term,
			idf:       idf,
			relevance: float64(termCounts[term]) * idf,
		})
	}

	if v.MaxFeatures > 0 && len(stats) > v.MaxFeatures {
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].relevance != stats[j].relevance {
				return stats[i].relevance > stats[j].relevance
			}
			return stats[i].term < stats[j].term
		})
		stats = stats[:v.MaxFeatures]
	}

	// columns follow lexicographic order so refits of the same corpus agree
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].term < stats[j].term
	})

	v.Vocabulary = make(map[string]int, len(stats))
	v.IDF = make([]float64, len(stats))
	for i, s := range stats {
		v.Vocabulary[s.term] = i
		v.IDF[i] = s.idf
	}
}

// Transform converts text to a vector based on the learned vocabulary.
// N-grams outside the vocabulary are ignored.
func (v *TFIDFVectorizer) Transform(text string) SparseVector {
	tf := make(map[int]float64)
	for _, gram := range CharNgrams(text, v.MinN, v.MaxN) {
		if idx, exists := v.Vocabulary[gram]; exists {
			tf[idx]++
		}
	}

	indices := make([]int, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = tf[idx] * v.IDF[idx]
	}
	return SparseVector{Indices: indices, Values: values}
}

func (v *TFIDFVectorizer) VocabularySize() int {
	return len(v.Vocabulary)
}
