// Package engine scores a symptom report against the knowledge base, ranks
// the candidate conditions, decides whether the result needs clarification
// and explains every ranking.
package engine

import (
	"strings"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

// Engine is immutable after New and safe for concurrent use.
type Engine struct {
	kb         *knowledgebase.KnowledgeBase
	cfg        Config
	normalizer *Normalizer
	scorer     *scorer
	log        logger.Logger
}

// New validates cfg and fits the vectorizer over kb.
func New(kb *knowledgebase.KnowledgeBase, cfg Config, log logger.Logger) (*Engine, error) {
	if kb == nil || kb.Len() == 0 {
		return nil, apperrors.NewKnowledgeBaseInvalidError("knowledge base is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInputValidationError(err.Error())
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Engine{
		kb:         kb,
		cfg:        cfg,
		normalizer: NewNormalizer(kb),
		scorer:     newScorer(kb, cfg),
		log:        log,
	}, nil
}

func (e *Engine) KnowledgeBase() *knowledgebase.KnowledgeBase { return e.kb }
func (e *Engine) Config() Config                             { return e.cfg }

// Normalize runs only the normalizer.
func (e *Engine) Normalize(phrases []string) Normalization {
	return e.normalizer.Normalize(phrases)
}

// Diagnose runs the full pipeline for one request.
func (e *Engine) Diagnose(req Request) (*Result, error) {
	phrases := []string(req.Symptoms)
	if e.cfg.AnswerPolicy == AnswerPolicyRefine {
		phrases = append(append([]string{}, phrases...), affirmedSymptoms(req.Answers)...)
	}

	norm := e.normalizer.Normalize(phrases)
	if len(norm.Symptoms) == 0 {
		return nil, apperrors.NewEmptyInputError()
	}
	if req.DurationDays != nil && *req.DurationDays <= 0 {
		return nil, apperrors.NewInvalidDurationError(*req.DurationDays)
	}

	ranking, err := rankScores(e.scorer.scoreAll(norm.Symptoms), e.cfg.MinimumRelevance)
	if err != nil {
		e.log.Debug("no condition above minimum relevance", map[string]interface{}{
			"symptoms": norm.Symptoms,
		})
		return nil, err
	}

	outcome := decide(ranking, e.cfg)

	var differential *DifferentialResult
	if wantsDifferential(outcome, ranking, e.cfg) {
		second, _ := ranking.At(2)
		pc, _ := e.kb.Condition(outcome.Primary.ConditionID)
		ac, _ := e.kb.Condition(second.ConditionID)
		differential = buildDifferential(outcome.Primary, second, pc, ac, norm.Symptoms, e.cfg.MaxClarificationSymptoms)
	}

	var duration *DurationCheck
	if req.DurationDays != nil {
		pc, _ := e.kb.Condition(outcome.Primary.ConditionID)
		if check, warned := checkDuration(*req.DurationDays, pc, e.cfg.ChronicShortFactor); warned {
			duration = &check
		}
	}

	outcome.ClarifyingQuestions = generateQuestions(questionInput{
		outcome:      outcome,
		differential: differential,
		symptoms:     norm.Symptoms,
		hasDuration:  req.DurationDays != nil,
		duration:     duration,
		lookup:       e.kb.Condition,
	}, e.cfg)

	top := ranking.Top(e.cfg.MaxResults)
	res := &Result{
		NormalizedSymptoms:   norm.Symptoms,
		UnrecognizedSymptoms: norm.Unrecognized,
		Ranking:              top,
		TotalCandidates:      ranking.TotalCandidates,
		Confidence:           outcome,
		Differential:         differential,
		DurationDays:         req.DurationDays,
		Explanations:         e.Explain(top),
		Region:               req.Region,
		PatientContext:       req.PatientContext,
		Answers:              req.Answers,
	}
	if duration != nil {
		res.DurationWarning = duration.Warning
		res.DurationFlag = duration.Flag
	}

	e.log.Debug("diagnosis complete", map[string]interface{}{
		"primary":    outcome.Primary.ConditionID,
		"score":      outcome.Primary.FinalScore,
		"reason":     string(outcome.Reason),
		"candidates": ranking.TotalCandidates,
	})
	return res, nil
}

// Explain builds the XAI view of scores without modifying them.
func (e *Engine) Explain(scores []ConditionScore) []Explanation {
	return explain(scores, func(id string) string {
		c, _ := e.kb.Condition(id)
		return c.Explanation
	})
}

// affirmedSymptoms returns the symptoms of CONFIRM_SYMPTOM and DIFFERENTIAL
// answers that were answered yes.
func affirmedSymptoms(answers []Answer) []string {
	var out []string
	for _, a := range answers {
		if a.Kind != QuestionConfirmSymptom && a.Kind != QuestionDifferential {
			continue
		}
		if a.Symptom == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(a.Value)) {
		case "yes", "y", "true":
			out = append(out, a.Symptom)
		}
	}
	return out
}
