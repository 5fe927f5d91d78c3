package diagnosesymptoms

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"diagnosis-workers/internal/common/camunda"
	"diagnosis-workers/internal/common/config"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/common/observability"
	"diagnosis-workers/internal/diagnosis/service"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

const TaskType = "diagnose-symptoms"

type Handler struct {
	config  *Config
	logger  logger.Logger
	service *service.Service
	runner  *camunda.JobRunner
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       *service.Service
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	cfg := LoadConfig(opts.AppConfig)
	return &Handler{
		config:  cfg,
		logger:  log,
		service: opts.Service,
		runner:  camunda.NewJobRunner(TaskType, cfg.Timeout, log, opts.Observability),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, h.process)
}

func (h *Handler) process(ctx context.Context, job entities.Job) (map[string]interface{}, error) {
	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	output, err := h.Execute(ctx, input)
	if err != nil {
		return nil, err
	}
	return jobvars.ToMap(output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	input := &Input{}
	if err := jobvars.Decode(job, inputSchema, input); err != nil {
		return nil, err
	}
	if !input.Resubmission() {
		if err := requestSchema.ValidateJSON(job.GetVariables()).Err(); err != nil {
			return nil, err
		}
	}
	return input, nil
}

// Execute diagnoses a fresh report, or re-scores an open session when the
// job carries a sessionId and answers.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		d   *service.Diagnosis
		err error
	)
	if input.Resubmission() {
		d, err = h.service.Resubmit(ctx, input.SessionID, input.Answers)
	} else {
		d, err = h.service.Diagnose(ctx, input.EngineRequest())
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("diagnosis produced", map[string]interface{}{
		"diagnosisId":        d.DiagnosisID,
		"primary":            d.Confidence.Primary.ConditionID,
		"reason":             string(d.Confidence.Reason),
		"needsClarification": d.Confidence.NeedsClarification,
		"sessionId":          d.SessionID,
	})
	return newOutput(d), nil
}
