// internal/diagnosis/engine/tfidf.go
package engine

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// stopWords holds English function words. Content words such as "back" or
// "side" stay, since they carry meaning in symptom names.
var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "again": true, "all": true, "am": true,
	"an": true, "and": true, "any": true, "are": true, "as": true, "at": true,
	"be": true, "been": true, "before": true, "being": true, "both": true, "but": true,
	"by": true, "can": true, "could": true, "did": true, "do": true, "does": true,
	"during": true, "each": true, "for": true, "from": true, "had": true, "has": true,
	"have": true, "having": true, "he": true, "her": true, "his": true, "how": true,
	"if": true, "in": true, "into": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "no": true, "nor": true, "not": true, "of": true,
	"on": true, "or": true, "our": true, "she": true, "so": true, "some": true,
	"than": true, "that": true, "the": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true, "to": true,
	"too": true, "very": true, "was": true, "we": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "who": true, "with": true,
	"would": true, "you": true, "your": true,
}

func tokenize(doc string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(doc), -1)
	out := raw[:0]
	for _, t := range raw {
		if !stopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

// sparseVector is an L2-normalised TF-IDF vector with entries sorted by term
// index.
type sparseVector struct {
	idx []int
	val []float64
}

// dot sums in index order so the result is reproducible bit for bit.
func (v sparseVector) dot(o sparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.idx) && j < len(o.idx) {
		switch {
		case v.idx[i] == o.idx[j]:
			sum += v.val[i] * o.val[j]
			i++
			j++
		case v.idx[i] < o.idx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// weight returns the component for term index t, or 0.
func (v sparseVector) weight(t int) float64 {
	k := sort.SearchInts(v.idx, t)
	if k < len(v.idx) && v.idx[k] == t {
		return v.val[k]
	}
	return 0
}

// vectorizer is a TF-IDF model fit once over the condition documents.
type vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// fitVectorizer learns the vocabulary and smoothed idf weights. Term indices
// follow alphabetical order.
func fitVectorizer(docs []string) *vectorizer {
	df := map[string]int{}
	for _, d := range docs {
		seen := map[string]bool{}
		for _, t := range tokenize(d) {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := &vectorizer{vocab: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	n := float64(len(docs))
	for i, t := range terms {
		v.vocab[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

// transform vectorizes doc. Out-of-vocabulary tokens are ignored.
func (v *vectorizer) transform(doc string) sparseVector {
	counts := map[int]float64{}
	for _, t := range tokenize(doc) {
		if i, ok := v.vocab[t]; ok {
			counts[i]++
		}
	}

	var vec sparseVector
	for i := range counts {
		vec.idx = append(vec.idx, i)
	}
	sort.Ints(vec.idx)

	var norm float64
	vec.val = make([]float64, len(vec.idx))
	for k, i := range vec.idx {
		w := counts[i] * v.idf[i]
		vec.val[k] = w
		norm += w * w
	}
	if norm == 0 {
		return sparseVector{}
	}
	norm = math.Sqrt(norm)
	for k := range vec.val {
		vec.val[k] /= norm
	}
	return vec
}

// termIndices returns the vocabulary indices of the tokens in phrase.
func (v *vectorizer) termIndices(phrase string) []int {
	var out []int
	seen := map[int]bool{}
	for _, t := range tokenize(phrase) {
		if i, ok := v.vocab[t]; ok && !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
