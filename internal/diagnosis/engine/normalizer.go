// internal/diagnosis/engine/normalizer.go
package engine

import (
	"sort"
	"strings"

	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

// SplitSymptoms breaks a delimited report into phrases. Empty pieces are
// kept out.
func SplitSymptoms(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', '|', '\n', '\r':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type keyword struct {
	word    string
	symptom string
}

// Normalizer maps free-text phrases to canonical symptom keys.
type Normalizer struct {
	keywords []keyword
	known    map[string]bool
}

// NewNormalizer indexes the keyword map of kb. Every canonical key is also a
// keyword of itself.
func NewNormalizer(kb *knowledgebase.KnowledgeBase) *Normalizer {
	n := &Normalizer{known: map[string]bool{}}
	seen := map[keyword]bool{}
	add := func(k keyword) {
		if k.word == "" || seen[k] {
			return
		}
		seen[k] = true
		n.keywords = append(n.keywords, k)
	}

	for _, s := range kb.Symptoms() {
		n.known[s] = true
		add(keyword{word: s, symptom: s})
	}
	for _, entry := range kb.Keywords() {
		for _, w := range entry.Keywords {
			add(keyword{word: w, symptom: entry.Symptom})
		}
	}

	// Longest keyword first, then by symptom key, so the first containment
	// hit is the answer.
	sort.Slice(n.keywords, func(i, j int) bool {
		a, b := n.keywords[i], n.keywords[j]
		if len(a.word) != len(b.word) {
			return len(a.word) > len(b.word)
		}
		if a.symptom != b.symptom {
			return a.symptom < b.symptom
		}
		return a.word < b.word
	})
	return n
}

// Normalization is the outcome of normalizing one report.
type Normalization struct {
	// Symptoms is the sorted, deduplicated set, unrecognized phrases included.
	Symptoms []string
	// Unrecognized lists the phrases that matched no keyword.
	Unrecognized []string
}

// Normalize canonicalizes phrases. A phrase matching no keyword is kept
// verbatim; it simply never overlaps a condition.
func (n *Normalizer) Normalize(phrases []string) Normalization {
	set := map[string]bool{}
	unknown := map[string]bool{}

	for _, p := range phrases {
		p = canonicalPhrase(p)
		if p == "" {
			continue
		}
		if key, ok := n.match(p); ok {
			set[key] = true
			continue
		}
		set[p] = true
		unknown[p] = true
	}

	return Normalization{
		Symptoms:     sortedKeys(set),
		Unrecognized: sortedKeys(unknown),
	}
}

func (n *Normalizer) match(phrase string) (string, bool) {
	if n.known[phrase] {
		return phrase, true
	}
	for _, k := range n.keywords {
		if strings.Contains(phrase, k.word) {
			return k.symptom, true
		}
	}
	return "", false
}

func canonicalPhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
