// Package knowledgebase holds the immutable condition catalog and the
// symptom keyword map the diagnosis engine scores against.
package knowledgebase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "diagnosis-workers/internal/common/errors"
)

// Defaults applied when a source omits typical duration bounds.
const (
	DefaultDurationMin = 1
	DefaultDurationMax = 365
)

// Condition is a diagnosable entity with its canonical symptom profile.
type Condition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Symptoms    []string `json:"symptoms"`
	Explanation string   `json:"explanation"`
	DurationMin int      `json:"typical_duration_min"`
	DurationMax int      `json:"typical_duration_max"`
	IsChronic   bool     `json:"is_chronic"`
	Specialists []string `json:"specialists,omitempty"`
	Code        string   `json:"code,omitempty"`
}

// HasSymptom reports whether key is part of the condition's profile.
func (c Condition) HasSymptom(key string) bool {
	for _, s := range c.Symptoms {
		if s == key {
			return true
		}
	}
	return false
}

// SymptomKeywords lists the free-text variants that normalize to Symptom.
type SymptomKeywords struct {
	Symptom  string   `json:"symptom"`
	Keywords []string `json:"keywords"`
}

// Source supplies a knowledge base at startup.
type Source interface {
	Load(ctx context.Context) (*KnowledgeBase, error)
}

// KnowledgeBase is read-only after New returns and safe for concurrent use.
// Accessors return shared slices; callers must not modify them.
type KnowledgeBase struct {
	conditions []Condition
	byID       map[string]int
	keywords   []SymptomKeywords
	symptoms   []string
}

// New validates and indexes a catalog. Conditions are ordered by id and
// keyword entries by symptom key so every iteration is deterministic.
func New(conditions []Condition, keywords map[string][]string) (*KnowledgeBase, error) {
	if len(conditions) == 0 {
		return nil, apperrors.NewKnowledgeBaseInvalidError("no conditions defined")
	}

	kb := &KnowledgeBase{
		conditions: make([]Condition, 0, len(conditions)),
		byID:       make(map[string]int, len(conditions)),
	}

	for _, c := range conditions {
		c, err := normalizeCondition(c)
		if err != nil {
			return nil, err
		}
		if _, dup := kb.byID[c.ID]; dup {
			return nil, apperrors.NewKnowledgeBaseInvalidError(fmt.Sprintf("duplicate condition id %q", c.ID))
		}
		kb.byID[c.ID] = -1
		kb.conditions = append(kb.conditions, c)
	}

	sort.SliceStable(kb.conditions, func(i, j int) bool {
		return kb.conditions[i].ID < kb.conditions[j].ID
	})
	for i, c := range kb.conditions {
		kb.byID[c.ID] = i
	}

	known := map[string]bool{}
	for _, c := range kb.conditions {
		for _, s := range c.Symptoms {
			known[s] = true
		}
	}

	for symptom, words := range keywords {
		key := canonical(symptom)
		if key == "" {
			return nil, apperrors.NewKnowledgeBaseInvalidError("empty symptom key in keyword map")
		}
		entry := SymptomKeywords{Symptom: key}
		seen := map[string]bool{}
		for _, w := range words {
			w = canonical(w)
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			entry.Keywords = append(entry.Keywords, w)
		}
		sort.Strings(entry.Keywords)
		kb.keywords = append(kb.keywords, entry)
		known[key] = true
	}
	sort.Slice(kb.keywords, func(i, j int) bool {
		return kb.keywords[i].Symptom < kb.keywords[j].Symptom
	})

	for s := range known {
		kb.symptoms = append(kb.symptoms, s)
	}
	sort.Strings(kb.symptoms)

	return kb, nil
}

func normalizeCondition(c Condition) (Condition, error) {
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return c, apperrors.NewKnowledgeBaseInvalidError("condition without id")
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = c.ID
	}

	symptoms := make([]string, 0, len(c.Symptoms))
	seen := map[string]bool{}
	for _, s := range c.Symptoms {
		s = canonical(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symptoms = append(symptoms, s)
	}
	if len(symptoms) == 0 {
		return c, apperrors.NewKnowledgeBaseInvalidError(fmt.Sprintf("condition %q has no symptoms", c.ID))
	}
	c.Symptoms = symptoms

	if c.DurationMin == 0 && c.DurationMax == 0 {
		c.DurationMin, c.DurationMax = DefaultDurationMin, DefaultDurationMax
	}
	if c.DurationMin < 0 || c.DurationMax < c.DurationMin {
		return c, apperrors.NewKnowledgeBaseInvalidError(
			fmt.Sprintf("condition %q has invalid duration bounds [%d,%d]", c.ID, c.DurationMin, c.DurationMax))
	}

	c.Specialists = append([]string(nil), c.Specialists...)
	return c, nil
}

// canonical lower-cases, trims and collapses inner whitespace.
func canonical(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Conditions returns every condition ordered by id.
func (kb *KnowledgeBase) Conditions() []Condition {
	return kb.conditions
}

// Condition looks a condition up by id.
func (kb *KnowledgeBase) Condition(id string) (Condition, bool) {
	i, ok := kb.byID[id]
	if !ok {
		return Condition{}, false
	}
	return kb.conditions[i], true
}

// Keywords returns the keyword map ordered by symptom key.
func (kb *KnowledgeBase) Keywords() []SymptomKeywords {
	return kb.keywords
}

// Symptoms returns every canonical symptom key known to the catalog, sorted.
func (kb *KnowledgeBase) Symptoms() []string {
	return kb.symptoms
}

// Len returns the number of conditions.
func (kb *KnowledgeBase) Len() int {
	return len(kb.conditions)
}
