// internal/diagnosis/engine/pipeline_test.go
package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

func scoreOf(id string, final float64) ConditionScore {
	return ConditionScore{ConditionID: id, Name: id, FinalScore: final, TextWeight: 0.6, OverlapWeight: 0.4}
}

func rankingOf(t *testing.T, scores ...ConditionScore) *Ranking {
	t.Helper()
	r, err := rankScores(scores, 0.10)
	require.NoError(t, err)
	return r
}

// ==========================
// Normalizer
// ==========================

func TestNormalizer_MapsKeywordsToCanonicalKeys(t *testing.T) {
	n := NewNormalizer(loadTestKB(t))

	got := n.Normalize([]string{"Feverish", "  COUGHING ", "scratchy throat", "itchy eyes", "I feel really tired", "cough"})
	assert.Equal(t, []string{"cough", "fatigue", "fever", "itchy eyes", "sore throat"}, got.Symptoms)
	assert.Empty(t, got.Unrecognized)
}

func TestNormalizer_LongestKeywordWins(t *testing.T) {
	kb, err := knowledgebase.New([]knowledgebase.Condition{
		{ID: "a", Symptoms: []string{"abdominal pain", "lower abdominal pain"}},
	}, map[string][]string{"abdominal pain": {"stomach pain"}})
	require.NoError(t, err)

	got := NewNormalizer(kb).Normalize([]string{"sharp lower abdominal pain", "stomach pain after meals"})
	assert.Equal(t, []string{"abdominal pain", "lower abdominal pain"}, got.Symptoms)
}

func TestNormalizer_KeepsUnknownPhrases(t *testing.T) {
	n := NewNormalizer(loadTestKB(t))

	got := n.Normalize([]string{"Blue   Fingers", "", "blue fingers", "rash"})
	assert.Equal(t, []string{"blue fingers", "rash"}, got.Symptoms)
	assert.Equal(t, []string{"blue fingers"}, got.Unrecognized)
}

func TestSplitSymptoms(t *testing.T) {
	assert.Equal(t, []string{"fever", "cough", "sore throat", "rash"}, SplitSymptoms("fever, cough;sore throat\n| rash ,,"))
	assert.Empty(t, SplitSymptoms("  , ; "))
}

// ==========================
// TF-IDF
// ==========================

func TestVectorizer_CosineOfIdenticalDocsIsOne(t *testing.T) {
	v := fitVectorizer([]string{"fever cough", "rash itchy skin", "cough wheezing"})

	a := v.transform("cough fever")
	b := v.transform("fever cough")
	assert.InDelta(t, 1.0, clamp01(a.dot(b)), 1e-12)
	assert.Equal(t, 0.0, v.transform("unknown words only").dot(a))
}

func TestVectorizer_SmoothIDF(t *testing.T) {
	v := fitVectorizer([]string{"fever cough", "cough"})

	assert.InDelta(t, math.Log(3.0/3.0)+1, v.idf[v.vocab["cough"]], 1e-12)
	assert.InDelta(t, math.Log(3.0/2.0)+1, v.idf[v.vocab["fever"]], 1e-12)
	_, ok := v.vocab["of"]
	assert.False(t, ok)
}

func TestTokenize_DropsStopWordsAndShortTokens(t *testing.T) {
	assert.Equal(t, []string{"loss", "taste", "back", "pain"}, tokenize("Loss of a taste, back pain"))
}

// ==========================
// Ranker
// ==========================

func TestRankScores_OrdersByScoreThenID(t *testing.T) {
	r := rankingOf(t, scoreOf("flu", 0.4), scoreOf("asthma", 0.7), scoreOf("covid_19", 0.4), scoreOf("noise", 0.05))

	require.Len(t, r.Scores, 3)
	assert.Equal(t, 3, r.TotalCandidates)
	assert.Equal(t, []string{"asthma", "covid_19", "flu"}, []string{r.Scores[0].ConditionID, r.Scores[1].ConditionID, r.Scores[2].ConditionID})
	assert.Equal(t, []int{1, 2, 3}, []int{r.Scores[0].Rank, r.Scores[1].Rank, r.Scores[2].Rank})

	gap, ok := r.ScoreGap(1)
	assert.True(t, ok)
	assert.InDelta(t, 0.3, gap, 1e-12)
	_, ok = r.ScoreGap(3)
	assert.False(t, ok)
	assert.Len(t, r.Top(2), 2)
	assert.Len(t, r.Top(0), 3)
}

func TestRankScores_EmptyResult(t *testing.T) {
	_, err := rankScores([]ConditionScore{scoreOf("a", 0.02)}, 0.10)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeEmptyResult, apperrors.CodeOf(err))
}

// ==========================
// Confidence Decider
// ==========================

func TestDecide_ThresholdBoundary(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		primary float64
		want    Reason
	}{
		{"exactly at threshold passes", 0.50, ReasonNone},
		{"just below threshold", 0.4999, ReasonBelowThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decide(rankingOf(t, scoreOf("a", tt.primary), scoreOf("b", 0.2)), cfg)
			assert.Equal(t, tt.want, out.Reason)
			assert.Equal(t, tt.want != ReasonNone, out.NeedsClarification)
		})
	}
}

func TestDecide_DifferentialBoundary(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name   string
		second float64
		want   Reason
	}{
		{"gap of exactly 0.05 is close", 0.55, ReasonCloseAlternatives},
		{"gap of 0.0501 is not", 0.5499, ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decide(rankingOf(t, scoreOf("a", 0.60), scoreOf("b", tt.second)), cfg)
			assert.Equal(t, tt.want, out.Reason)
		})
	}
}

func TestDecide_CloseAlternativesScenario(t *testing.T) {
	out := decide(rankingOf(t, scoreOf("a", 0.60), scoreOf("b", 0.58), scoreOf("c", 0.56), scoreOf("d", 0.30)), DefaultConfig())

	assert.True(t, out.NeedsClarification)
	assert.Equal(t, ReasonCloseAlternatives, out.Reason)
	assert.Equal(t, "a", out.Primary.ConditionID)

	var alt []string
	for _, s := range out.Alternatives {
		alt = append(alt, s.ConditionID)
	}
	assert.Equal(t, []string{"b", "c"}, alt)

	var set []string
	for _, s := range out.DifferentialSet() {
		set = append(set, s.ConditionID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, set)
}

func TestDecide_AlwaysReportsPrimary(t *testing.T) {
	out := decide(rankingOf(t, scoreOf("only", 0.9)), DefaultConfig())

	assert.False(t, out.NeedsClarification)
	assert.Equal(t, ReasonNone, out.Reason)
	assert.Equal(t, "only", out.Primary.ConditionID)
	assert.Empty(t, out.Alternatives)
	assert.NotEmpty(t, out.NextStep)
}

// ==========================
// Differential Formatter
// ==========================

func TestBuildDifferential_Sets(t *testing.T) {
	p := knowledgebase.Condition{ID: "flu", Name: "Influenza", Symptoms: []string{"fever", "chills", "cough", "muscle aches"}}
	a := knowledgebase.Condition{ID: "cold", Name: "Common Cold", Symptoms: []string{"cough", "runny nose", "sneezing"}}

	d := buildDifferential(scoreOf("flu", 0.60), scoreOf("cold", 0.58), p, a, []string{"cough", "fever", "sneezing"}, 4)

	assert.Equal(t, []string{"cough"}, d.SharedSymptoms)
	assert.Equal(t, []string{"fever"}, d.DistinguishingForPrimary)
	assert.Equal(t, []string{"sneezing"}, d.DistinguishingForAlternative)
	// runny nose moves the cold's overlap by 1/3, chills and aches the flu's by 1/4
	assert.Equal(t, []string{"runny nose", "chills", "muscle aches"}, d.ClarificationSymptoms)
	assert.InDelta(t, 0.02, d.ScoreGap, 1e-12)
	assert.Contains(t, d.Explanation, "flu (60%) scores 2.0 percentage points above cold (58%).")
}

func TestBuildDifferential_WideGapStatesTheGap(t *testing.T) {
	p := knowledgebase.Condition{ID: "flu", Name: "Influenza", Symptoms: []string{"fever", "cough"}}
	a := knowledgebase.Condition{ID: "cold", Name: "Common Cold", Symptoms: []string{"cough", "sneezing"}}

	d := buildDifferential(scoreOf("flu", 0.45), scoreOf("cold", 0.12), p, a, []string{"cough", "fever"}, 4)

	assert.Contains(t, d.Explanation, "flu (45%) scores 33.0 percentage points above cold (12%).")
	assert.NotContains(t, d.Explanation, "within")
}

func TestBuildDifferential_CapsClarification(t *testing.T) {
	p := knowledgebase.Condition{ID: "p", Symptoms: []string{"a", "b", "c", "d", "e"}}
	a := knowledgebase.Condition{ID: "q", Symptoms: []string{"a", "f", "g"}}

	d := buildDifferential(scoreOf("p", 0.5), scoreOf("q", 0.5), p, a, []string{"a"}, 2)
	assert.Equal(t, []string{"f", "g"}, d.ClarificationSymptoms)
}

func TestWantsDifferential(t *testing.T) {
	cfg := DefaultConfig()
	two := rankingOf(t, scoreOf("a", 0.3), scoreOf("b", 0.2))
	one := rankingOf(t, scoreOf("a", 0.3))

	assert.True(t, wantsDifferential(ConfidenceOutcome{Reason: ReasonCloseAlternatives}, two, cfg))
	assert.True(t, wantsDifferential(ConfidenceOutcome{Reason: ReasonBelowThreshold}, two, cfg))
	assert.False(t, wantsDifferential(ConfidenceOutcome{Reason: ReasonBelowThreshold}, one, cfg))
	assert.False(t, wantsDifferential(ConfidenceOutcome{Reason: ReasonNone}, two, cfg))

	cfg.DifferentialOnLowConfidence = false
	assert.False(t, wantsDifferential(ConfidenceOutcome{Reason: ReasonBelowThreshold}, two, cfg))
}

// ==========================
// Clarifying questions
// ==========================

func TestGenerateQuestions_BelowThresholdScenario(t *testing.T) {
	kb := loadTestKB(t)
	primary := scoreOf("common_cold", 0.45)
	primary.MatchedSymptoms = []string{"cough"}
	primary.UnmatchedSymptoms = []string{"runny nose", "sore throat", "sneezing", "congestion", "headache", "fatigue"}
	primary.Contributions = []SymptomContribution{{Symptom: "cough", Total: 0.2}}

	out := decide(rankingOf(t, primary, scoreOf("flu", 0.2)), DefaultConfig())
	require.Equal(t, ReasonBelowThreshold, out.Reason)

	qs := generateQuestions(questionInput{
		outcome:     out,
		symptoms:    []string{"cough"},
		hasDuration: true,
		lookup:      kb.Condition,
	}, DefaultConfig())

	var severity, timeline, confirm int
	for _, q := range qs {
		switch q.Kind {
		case QuestionSeverity:
			severity++
			assert.Equal(t, []string{"cough"}, q.RelatedSymptoms)
		case QuestionTimeline:
			timeline++
		case QuestionConfirmSymptom:
			confirm++
		case QuestionFreeText:
			assert.False(t, q.Required)
			assert.NotEmpty(t, q.FieldName)
		}
	}
	assert.Equal(t, 1, severity)
	assert.Equal(t, 1, timeline)
	assert.Equal(t, 3, confirm)
}

func TestGenerateQuestions_DifferentialPerAlternative(t *testing.T) {
	kb := loadTestKB(t)
	cfg := DefaultConfig()
	cfg.IncludeIntakeQuestions = false

	out := decide(rankingOf(t, scoreOf("flu", 0.60), scoreOf("covid_19", 0.58), scoreOf("common_cold", 0.57)), cfg)
	require.Equal(t, ReasonCloseAlternatives, out.Reason)

	qs := generateQuestions(questionInput{
		outcome:     out,
		symptoms:    []string{"cough", "fever"},
		hasDuration: true,
		lookup:      kb.Condition,
	}, cfg)

	var diffs []ClarifyingQuestion
	for _, q := range qs {
		assert.NotEqual(t, QuestionTimeline, q.Kind)
		assert.NotEqual(t, QuestionFreeText, q.Kind)
		if q.Kind == QuestionDifferential {
			diffs = append(diffs, q)
		}
	}
	require.Len(t, diffs, 2)
	assert.Equal(t, "covid_19", diffs[0].ConditionID)
	assert.Equal(t, []string{"shortness of breath"}, diffs[0].RelatedSymptoms)
	assert.Equal(t, "common_cold", diffs[1].ConditionID)
	assert.Equal(t, []string{"runny nose"}, diffs[1].RelatedSymptoms)
}

func TestGenerateQuestions_NoneWhenConfident(t *testing.T) {
	out := decide(rankingOf(t, scoreOf("a", 0.9)), DefaultConfig())
	assert.Nil(t, generateQuestions(questionInput{outcome: out}, DefaultConfig()))
}

func TestGenerateQuestions_TimelineWhenDurationMissing(t *testing.T) {
	kb := loadTestKB(t)
	out := decide(rankingOf(t, scoreOf("flu", 0.60), scoreOf("covid_19", 0.58)), DefaultConfig())

	qs := generateQuestions(questionInput{outcome: out, symptoms: []string{"fever"}, lookup: kb.Condition}, DefaultConfig())

	var timeline int
	for _, q := range qs {
		if q.Kind == QuestionTimeline {
			timeline++
		}
	}
	assert.Equal(t, 1, timeline)
}

// ==========================
// Duration Validator
// ==========================

func TestCheckDuration_Bounds(t *testing.T) {
	cold := knowledgebase.Condition{ID: "common_cold", Name: "Common Cold", DurationMin: 3, DurationMax: 10}

	tests := []struct {
		days int
		warn bool
		flag DurationFlag
	}{
		{3, false, ""},
		{10, false, ""},
		{2, true, DurationEarly},
		{11, true, DurationProlonged},
	}

	for _, tt := range tests {
		check, warned := checkDuration(tt.days, cold, 0.25)
		assert.Equal(t, tt.warn, warned, "days=%d", tt.days)
		assert.Equal(t, tt.flag, check.Flag, "days=%d", tt.days)
		if tt.warn {
			assert.NotEmpty(t, check.Warning)
		}
	}
}

func TestCheckDuration_Chronic(t *testing.T) {
	asthma := knowledgebase.Condition{ID: "asthma", Name: "Asthma", DurationMin: 30, DurationMax: 3650, IsChronic: true}

	_, warned := checkDuration(5000, asthma, 0.25)
	assert.False(t, warned)
	_, warned = checkDuration(8, asthma, 0.25)
	assert.False(t, warned)

	check, warned := checkDuration(7, asthma, 0.25)
	assert.True(t, warned)
	assert.Equal(t, DurationEarly, check.Flag)
}

// ==========================
// Explainer
// ==========================

func TestExplain_IsReadOnlyAndIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	res, err := e.Diagnose(Request{Symptoms: SymptomInput{"fever", "cough", "sore throat", "fatigue"}})
	require.NoError(t, err)

	snapshot := make([]ConditionScore, len(res.Ranking))
	for i, s := range res.Ranking {
		s.MatchedSymptoms = append(s.MatchedSymptoms[:0:0], s.MatchedSymptoms...)
		s.UnmatchedSymptoms = append(s.UnmatchedSymptoms[:0:0], s.UnmatchedSymptoms...)
		s.Contributions = append(s.Contributions[:0:0], s.Contributions...)
		snapshot[i] = s
	}

	first := e.Explain(res.Ranking)
	second := e.Explain(res.Ranking)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, res.Ranking)

	first[0].MatchedSymptoms[0] = "mutated"
	assert.NotEqual(t, "mutated", res.Ranking[0].MatchedSymptoms[0])
}

func TestExplain_Breakdown(t *testing.T) {
	s := ConditionScore{
		ConditionID: "flu", Name: "Influenza", Rank: 1,
		TextSimilarity: 0.7, TextWeight: 0.6, OverlapRatio: 0.75, OverlapWeight: 0.4,
		FinalScore:        0.72,
		MatchedSymptoms:   []string{"fever", "cough", "chills"},
		UnmatchedSymptoms: []string{"muscle aches"},
		Contributions: []SymptomContribution{
			{Symptom: "fever", Total: 0.3},
			{Symptom: "cough", Total: 0.1},
			{Symptom: "chills", Total: 0.2},
		},
	}
	below := scoreOf("cold", 0.52)
	below.Rank = 2

	ex := explain([]ConditionScore{s, below}, func(string) string { return "A viral infection." })
	require.Len(t, ex, 2)

	got := ex[0]
	assert.Equal(t, 72.0, got.ConfidencePercent)
	assert.Equal(t, "High", got.ConfidenceLevel)
	assert.Equal(t, 75.0, got.CoveragePercent)
	assert.InDelta(t, 0.42, got.TextComponent, 1e-12)
	assert.InDelta(t, 0.30, got.OverlapComponent, 1e-12)

	require.Len(t, got.FeatureImportance, 3)
	assert.Equal(t, FeatureImportance{Symptom: "fever", Importance: 0.5, Contribution: TierHigh}, got.FeatureImportance[0])
	assert.Equal(t, "chills", got.FeatureImportance[1].Symptom)
	assert.Equal(t, TierMedium, got.FeatureImportance[1].Contribution)
	assert.Equal(t, TierLow, got.FeatureImportance[2].Contribution)

	assert.Equal(t, "Strong semantic match (your symptoms closely match the description of this condition) and Most of the key symptoms match (3/4)", got.MainReason)
	assert.Contains(t, got.Summary, "A viral infection.")
	assert.Empty(t, got.ComparedToPrevious)
	assert.Equal(t, "Influenza scored 20.0% higher than cold", ex[1].ComparedToPrevious)
}

func TestConfidenceLevel(t *testing.T) {
	assert.Equal(t, "Very High", ConfidenceLevel(0.8))
	assert.Equal(t, "High", ConfidenceLevel(0.6))
	assert.Equal(t, "Moderate", ConfidenceLevel(0.4))
	assert.Equal(t, "Low", ConfidenceLevel(0.2))
	assert.Equal(t, "Very Low", ConfidenceLevel(0.19))
}
