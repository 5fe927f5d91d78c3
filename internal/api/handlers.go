package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/engine"
)

var requestSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["symptoms"],
	"properties": {
		"symptoms": {"type": ["string", "array"], "items": {"type": "string"}},
		"duration_days": {"type": ["integer", "null"]},
		"days": {"type": ["integer", "null"]},
		"region": {"type": "string"},
		"patient_context": {"type": ["object", "null"]},
		"answers": {"type": "array", "items": {"type": "object", "required": ["kind", "value"]}}
	}
}`)

var answersSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["answers"],
	"properties": {
		"answers": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["kind", "value"],
				"properties": {
					"kind": {"enum": ["CONFIRM_SYMPTOM", "SEVERITY", "TIMELINE", "DIFFERENTIAL", "FREE_TEXT"]},
					"value": {"type": "string"}
				}
			}
		}
	}
}`)

// diagnoseRequest accepts "days" as an alias of duration_days.
type diagnoseRequest struct {
	engine.Request
	Days *int `json:"days,omitempty"`
}

func (d diagnoseRequest) engineRequest() engine.Request {
	req := d.Request
	if req.DurationDays == nil {
		req.DurationDays = d.Days
	}
	return req
}

type answersRequest struct {
	Answers []engine.Answer `json:"answers"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	_, err := s.svc.Engine()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"engine_ready": err == nil,
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Engine()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ready",
		"conditions": len(e.KnowledgeBase().Conditions()),
		"sessions":   s.svc.SessionsEnabled(),
	})
}

func (s *Server) diagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := decodeBody(w, r, requestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.svc.Diagnose(r.Context(), req.engineRequest())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decodeBody(w, r, answersSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.svc.Resubmit(r.Context(), chi.URLParam(r, "sessionID"), req.Answers)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := decodeBody(w, r, requestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.svc.Recommend(r.Context(), req.engineRequest())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := decodeBody(w, r, requestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmp, err := s.svc.Compare(r.Context(), req.engineRequest())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.ExplainCondition(r.Context(), chi.URLParam(r, "conditionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) symptoms(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Symptoms()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_symptoms": len(list),
		"symptoms":       list,
	})
}

func (s *Server) diseases(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Conditions()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_diseases": len(list),
		"diseases":       list,
	})
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "diagnosisID")
	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rec == nil {
		s.writeError(w, r, apperrors.NewRecordNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
