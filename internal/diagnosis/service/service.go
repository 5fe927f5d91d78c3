// Package service is the use-case layer shared by the Zeebe workers and the
// HTTP API: diagnosis with clarification sessions, care recommendations,
// condition comparison and catalog listings.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/common/metrics"
	"diagnosis-workers/internal/common/observability"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/session"
)

// Diagnosis is the envelope returned for one diagnosis request.
type Diagnosis struct {
	DiagnosisID  string    `json:"diagnosis_id"`
	AnalysisType string    `json:"analysis_type"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	*engine.Result
}

type Service struct {
	provider *engine.Provider
	sessions *session.Store
	obs      *observability.Observability
	log      logger.Logger
	now      func() time.Time
}

type Options struct {
	Provider      *engine.Provider
	Sessions      *session.Store
	Observability *observability.Observability
	Logger        logger.Logger
}

func New(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		provider: opts.Provider,
		sessions: opts.Sessions,
		obs:      opts.Observability,
		log:      log,
		now:      time.Now,
	}
}

// Engine returns the ready engine or ENGINE_NOT_READY.
func (s *Service) Engine() (*engine.Engine, error) {
	return s.provider.Engine()
}

// SessionsEnabled reports whether clarification sessions are persisted.
func (s *Service) SessionsEnabled() bool {
	return s.sessions != nil
}

// Diagnose scores req and, when the result needs clarification, opens a
// session holding the issued questions.
func (s *Service) Diagnose(ctx context.Context, req engine.Request) (*Diagnosis, error) {
	d, err := s.diagnose(ctx, req)
	if err != nil {
		return nil, err
	}
	s.openSession(ctx, req, d)
	return d, nil
}

// Resubmit appends answers to an open session and re-scores its report.
// A confident result closes the session.
func (s *Service) Resubmit(ctx context.Context, sessionID string, answers []engine.Answer) (*Diagnosis, error) {
	if s.sessions == nil {
		return nil, errSessionsDisabled()
	}
	sess, req, err := s.sessions.Answer(ctx, sessionID, answers)
	if err != nil {
		return nil, err
	}
	metrics.ClarificationSessions.WithLabelValues("answered").Inc()

	d, err := s.diagnose(ctx, req)
	if err != nil {
		return nil, err
	}

	if d.Confidence.NeedsClarification {
		d.SessionID = sess.ID
		return d, nil
	}
	if err := s.sessions.Close(ctx, sess.ID); err != nil {
		s.log.Warn("failed to close clarification session", map[string]interface{}{
			"sessionId": sess.ID,
			"error":     err.Error(),
		})
	}
	return d, nil
}

func (s *Service) diagnose(ctx context.Context, req engine.Request) (*Diagnosis, error) {
	e, err := s.provider.Engine()
	if err != nil {
		return nil, err
	}

	_, span := s.obs.StartSpan(ctx, "engine.Diagnose",
		attribute.Int("symptoms.count", len(req.Symptoms)))
	defer span.End()

	start := s.now()
	res, err := e.Diagnose(req)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	reason := string(res.Confidence.Reason)
	metrics.DiagnosesTotal.WithLabelValues(reason).Inc()
	metrics.DiagnosisDuration.Observe(elapsed.Seconds())
	metrics.UnrecognizedSymptoms.Add(float64(len(res.UnrecognizedSymptoms)))
	s.obs.RecordDiagnosis(ctx, reason, elapsed)
	span.SetAttributes(
		attribute.String("diagnosis.primary", res.Confidence.Primary.ConditionID),
		attribute.String("diagnosis.reason", reason),
	)

	return &Diagnosis{
		DiagnosisID:  uuid.New().String(),
		AnalysisType: res.AnalysisType(),
		CreatedAt:    s.now().UTC(),
		Result:       res,
	}, nil
}

func (s *Service) openSession(ctx context.Context, req engine.Request, d *Diagnosis) {
	if s.sessions == nil || !d.Confidence.NeedsClarification {
		return
	}
	sess, err := s.sessions.Open(ctx, req, d.Result)
	if err != nil {
		// the diagnosis stands on its own; callers simply cannot resubmit
		s.log.Warn("failed to open clarification session", map[string]interface{}{
			"diagnosisId": d.DiagnosisID,
			"error":       err.Error(),
		})
		return
	}
	metrics.ClarificationSessions.WithLabelValues("opened").Inc()
	d.SessionID = sess.ID
}

// rawText joins the reported phrases for keyword checks.
func rawText(req engine.Request) string {
	return strings.ToLower(strings.Join(req.Symptoms, " "))
}
