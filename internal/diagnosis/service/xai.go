package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

const (
	compareLimit          = 5
	maxMissingSymptoms    = 5
	reportedMissing       = 3
	maxImpactPerSymptom   = 0.15
	defaultTopChoiceBlurb = "Best match for reported symptoms"
)

// ConditionDetail is the catalog view of one condition.
type ConditionDetail struct {
	ConditionID string   `json:"condition_id"`
	Name        string   `json:"name"`
	Symptoms    []string `json:"symptoms"`
	Explanation string   `json:"explanation"`
	DurationMin int      `json:"typical_duration_min"`
	DurationMax int      `json:"typical_duration_max"`
	IsChronic   bool     `json:"is_chronic"`
	Specialists []string `json:"specialists"`
	Code        string   `json:"code,omitempty"`
}

// ExplainCondition returns the catalog entry for id.
func (s *Service) ExplainCondition(_ context.Context, id string) (*ConditionDetail, error) {
	e, err := s.provider.Engine()
	if err != nil {
		return nil, err
	}
	c, ok := e.KnowledgeBase().Condition(strings.TrimSpace(id))
	if !ok {
		return nil, apperrors.NewConditionNotFoundError(id)
	}

	specialists := c.Specialists
	if len(specialists) == 0 {
		specialists = []string{specialistFor(c).Specialist}
	}
	return &ConditionDetail{
		ConditionID: c.ID,
		Name:        c.Name,
		Symptoms:    c.Symptoms,
		Explanation: c.Explanation,
		DurationMin: c.DurationMin,
		DurationMax: c.DurationMax,
		IsChronic:   c.IsChronic,
		Specialists: specialists,
		Code:        c.Code,
	}, nil
}

// Choice is one condition in a comparison, confidence in percent.
type Choice struct {
	ConditionID string  `json:"condition_id"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason,omitempty"`
	WhyLower    string  `json:"why_lower,omitempty"`
	GapFromTop  float64 `json:"gap_from_top,omitempty"`
}

// DetailedScore breaks one ranked score into its components.
type DetailedScore struct {
	Rank             int     `json:"rank"`
	ConditionID      string  `json:"condition_id"`
	Name             string  `json:"name"`
	Confidence       float64 `json:"confidence"`
	MainReason       string  `json:"main_reason"`
	TextSimilarity   float64 `json:"text_similarity"`
	OverlapRatio     float64 `json:"overlap_ratio"`
	TextComponent    float64 `json:"text_component"`
	OverlapComponent float64 `json:"overlap_component"`
}

// MissingSymptom is an unreported symptom that would lift the runner-up.
type MissingSymptom struct {
	Symptom         string  `json:"symptom"`
	ImpactPercent   float64 `json:"impact_percent"`
	AlsoInTopChoice bool    `json:"also_in_top_choice"`
}

// Counterfactual explains what kept the second-ranked condition lower.
type Counterfactual struct {
	TopChoice             Choice           `json:"top_choice"`
	Alternative           Choice           `json:"alternative"`
	Explanation           string           `json:"explanation"`
	CriticalMissing       []MissingSymptom `json:"critical_missing_symptoms"`
	SharedSymptoms        []string         `json:"shared_with_top_choice"`
	UniqueToTopChoice     []string         `json:"unique_to_top_choice"`
	UniqueToAlternative   []string         `json:"unique_to_alternative"`
	OverlapPercent        float64          `json:"symptom_overlap_percentage"`
	DifferentialNote      string           `json:"differential_note"`
	MissingSymptomsTotal  int              `json:"missing_symptoms_total"`
	ScoreDifferenceRemark string           `json:"score_difference"`
}

// Comparison contrasts the top-ranked conditions of one report.
type Comparison struct {
	DiagnosisID    string          `json:"diagnosis_id"`
	TopChoice      Choice          `json:"top_choice"`
	Alternatives   []Choice        `json:"alternatives"`
	DetailedScores []DetailedScore `json:"detailed_scores"`
	Counterfactual *Counterfactual `json:"counterfactual,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// Compare diagnoses req and explains why each of the top five conditions
// ranks where it does.
func (s *Service) Compare(ctx context.Context, req engine.Request) (*Comparison, error) {
	e, err := s.provider.Engine()
	if err != nil {
		return nil, err
	}
	d, err := s.diagnose(ctx, req)
	if err != nil {
		return nil, err
	}
	return buildComparison(d, e.KnowledgeBase()), nil
}

func buildComparison(d *Diagnosis, kb *knowledgebase.KnowledgeBase) *Comparison {
	top := d.Ranking
	if len(top) > compareLimit {
		top = top[:compareLimit]
	}
	first := top[0]
	firstCond, _ := kb.Condition(first.ConditionID)

	reason := firstCond.Explanation
	if reason == "" {
		reason = defaultTopChoiceBlurb
	}
	cmp := &Comparison{
		DiagnosisID:  d.DiagnosisID,
		TopChoice:    Choice{ConditionID: first.ConditionID, Name: first.Name, Confidence: pct(first.FinalScore), Reason: reason},
		Alternatives: []Choice{},
	}

	for _, sc := range top[1:] {
		gap := first.FinalScore - sc.FinalScore
		cmp.Alternatives = append(cmp.Alternatives, Choice{
			ConditionID: sc.ConditionID,
			Name:        sc.Name,
			Confidence:  pct(sc.FinalScore),
			WhyLower:    fmt.Sprintf("%.1f%% less likely than %s", pct(gap), first.Name),
			GapFromTop:  pct(gap),
		})
	}

	for _, sc := range top {
		cmp.DetailedScores = append(cmp.DetailedScores, DetailedScore{
			Rank:             sc.Rank,
			ConditionID:      sc.ConditionID,
			Name:             sc.Name,
			Confidence:       pct(sc.FinalScore),
			MainReason:       engine.RenderMainReason(sc),
			TextSimilarity:   sc.TextSimilarity,
			OverlapRatio:     sc.OverlapRatio,
			TextComponent:    sc.TextComponent(),
			OverlapComponent: sc.OverlapComponent(),
		})
	}

	if len(top) < 2 {
		cmp.Message = "Only one condition matched the reported symptoms"
		return cmp
	}
	cmp.Counterfactual = counterfactual(first, top[1], firstCond)
	return cmp
}

func counterfactual(first, second engine.ConditionScore, firstCond knowledgebase.Condition) *Counterfactual {
	gap := first.FinalScore - second.FinalScore

	missing := second.UnmatchedSymptoms
	if len(missing) > maxMissingSymptoms {
		missing = missing[:maxMissingSymptoms]
	}

	cf := &Counterfactual{
		TopChoice:             Choice{ConditionID: first.ConditionID, Name: first.Name, Confidence: pct(first.FinalScore)},
		Alternative:           Choice{ConditionID: second.ConditionID, Name: second.Name, Confidence: pct(second.FinalScore), GapFromTop: pct(gap)},
		CriticalMissing:       []MissingSymptom{},
		MissingSymptomsTotal:  len(missing),
		ScoreDifferenceRemark: engine.RenderScoreDifference(second, first),
	}

	if len(missing) > 0 {
		impact := math.Min(gap/float64(len(missing)), maxImpactPerSymptom)
		for i, sym := range missing {
			if i == reportedMissing {
				break
			}
			cf.CriticalMissing = append(cf.CriticalMissing, MissingSymptom{
				Symptom:         sym,
				ImpactPercent:   pct(impact),
				AlsoInTopChoice: firstCond.HasSymptom(sym),
			})
		}
	}

	firstMatched := toSet(first.MatchedSymptoms)
	secondMatched := toSet(second.MatchedSymptoms)
	var union int
	for sym := range firstMatched {
		if secondMatched[sym] {
			cf.SharedSymptoms = append(cf.SharedSymptoms, sym)
		} else {
			cf.UniqueToTopChoice = append(cf.UniqueToTopChoice, sym)
		}
		union++
	}
	for sym := range secondMatched {
		if !firstMatched[sym] {
			cf.UniqueToAlternative = append(cf.UniqueToAlternative, sym)
			union++
		}
	}
	sort.Strings(cf.SharedSymptoms)
	sort.Strings(cf.UniqueToTopChoice)
	sort.Strings(cf.UniqueToAlternative)
	if union > 0 {
		cf.OverlapPercent = round1(float64(len(cf.SharedSymptoms)) / float64(union) * 100)
	}

	if len(missing) == 0 {
		cf.Explanation = fmt.Sprintf(
			"%s scored lower (%.1f%%) than %s (%.1f%%) because its description is a weaker textual match for your report. "+
				"Both conditions explain the symptoms you reported equally well.",
			second.Name, pct(second.FinalScore), first.Name, pct(first.FinalScore))
	} else {
		list := strings.Join(missing[:min(len(missing), reportedMissing)], ", ")
		if len(missing) > reportedMissing {
			list += fmt.Sprintf(", and %d others", len(missing)-reportedMissing)
		}
		cf.Explanation = fmt.Sprintf(
			"%s scored lower (%.1f%%) than %s (%.1f%%) by %.1f%% because key symptoms are missing. "+
				"Reporting %s would raise the confidence in %s.",
			second.Name, pct(second.FinalScore), first.Name, pct(first.FinalScore), pct(gap), list, second.Name)
	}

	cf.DifferentialNote = fmt.Sprintf(
		"%s has %d distinguishing symptoms matching your report, while %s is missing %d key symptoms.",
		first.Name, len(cf.UniqueToTopChoice), second.Name, len(missing))
	return cf
}

// ConditionSummary is one entry of the condition listing.
type ConditionSummary struct {
	ConditionID  string `json:"id"`
	Name         string `json:"name"`
	SymptomCount int    `json:"symptom_count"`
}

// Symptoms lists every symptom key with keyword variants, sorted.
func (s *Service) Symptoms() ([]string, error) {
	e, err := s.provider.Engine()
	if err != nil {
		return nil, err
	}
	keywords := e.KnowledgeBase().Keywords()
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, k.Symptom)
	}
	return out, nil
}

// Conditions lists the catalog sorted by name.
func (s *Service) Conditions() ([]ConditionSummary, error) {
	e, err := s.provider.Engine()
	if err != nil {
		return nil, err
	}
	conds := e.KnowledgeBase().Conditions()
	out := make([]ConditionSummary, 0, len(conds))
	for _, c := range conds {
		out = append(out, ConditionSummary{ConditionID: c.ID, Name: c.Name, SymptomCount: len(c.Symptoms)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func errSessionsDisabled() error {
	return apperrors.NewInputValidationError("clarification sessions are not enabled")
}

func pct(x float64) float64 {
	return round1(x * 100)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
