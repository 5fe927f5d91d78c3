// internal/diagnosis/engine/scorer.go
package engine

import (
	"strings"

	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

// scorer holds the vectorizer and the precomputed condition vectors.
type scorer struct {
	cfg        Config
	vec        *vectorizer
	conditions []knowledgebase.Condition
	docs       []sparseVector
}

func newScorer(kb *knowledgebase.KnowledgeBase, cfg Config) *scorer {
	conditions := kb.Conditions()
	texts := make([]string, len(conditions))
	for i, c := range conditions {
		texts[i] = strings.Join(c.Symptoms, " ")
	}

	s := &scorer{
		cfg:        cfg,
		vec:        fitVectorizer(texts),
		conditions: conditions,
		docs:       make([]sparseVector, len(conditions)),
	}
	for i, t := range texts {
		s.docs[i] = s.vec.transform(t)
	}
	return s
}

// scoreAll scores the normalized set against every condition, in catalog
// order. symptoms must already be sorted.
func (s *scorer) scoreAll(symptoms []string) []ConditionScore {
	input := s.vec.transform(strings.Join(symptoms, " "))
	present := make(map[string]bool, len(symptoms))
	for _, sym := range symptoms {
		present[sym] = true
	}

	out := make([]ConditionScore, len(s.conditions))
	for i, c := range s.conditions {
		out[i] = s.score(c, s.docs[i], input, present)
	}
	return out
}

func (s *scorer) score(c knowledgebase.Condition, doc, input sparseVector, present map[string]bool) ConditionScore {
	matched := make([]string, 0, len(c.Symptoms))
	unmatched := make([]string, 0, len(c.Symptoms))
	for _, sym := range c.Symptoms {
		if present[sym] {
			matched = append(matched, sym)
		} else {
			unmatched = append(unmatched, sym)
		}
	}

	text := clamp01(input.dot(doc))
	overlap := float64(len(matched)) / float64(len(c.Symptoms))

	return ConditionScore{
		ConditionID:       c.ID,
		Name:              c.Name,
		TextSimilarity:    text,
		TextWeight:        s.cfg.TextWeight,
		OverlapRatio:      overlap,
		OverlapWeight:     s.cfg.OverlapWeight,
		FinalScore:        s.cfg.TextWeight*text + s.cfg.OverlapWeight*overlap,
		MatchedSymptoms:   matched,
		UnmatchedSymptoms: unmatched,
		Contributions:     s.contributions(c, matched, doc, input),
	}
}

// contributions splits a score across its matched symptoms. Each matched
// symptom gets an equal share of the overlap component, plus the weighted
// cosine terms of its tokens. A token shared by several matched symptoms is
// split evenly between them.
func (s *scorer) contributions(c knowledgebase.Condition, matched []string, doc, input sparseVector) []SymptomContribution {
	if len(matched) == 0 {
		return nil
	}

	terms := make([][]int, len(matched))
	owners := map[int]int{}
	for i, sym := range matched {
		terms[i] = s.vec.termIndices(sym)
		for _, t := range terms[i] {
			owners[t]++
		}
	}

	overlapShare := s.cfg.OverlapWeight / float64(len(c.Symptoms))
	out := make([]SymptomContribution, len(matched))
	for i, sym := range matched {
		var text float64
		for _, t := range terms[i] {
			text += input.weight(t) * doc.weight(t) / float64(owners[t])
		}
		text *= s.cfg.TextWeight
		out[i] = SymptomContribution{
			Symptom: sym,
			Text:    text,
			Overlap: overlapShare,
			Total:   text + overlapShare,
		}
	}
	return out
}
