package compareconditions

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

const TaskType = "compare-conditions"

type Handler struct {
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
	return &Handler{
		logger:  log,
		service: opts.Service,
		runner:  camunda.NewJobRunner(TaskType, LoadConfig(opts.AppConfig).Timeout, log, opts.Observability),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context, job entities.Job) (map[string]interface{}, error) {
		input := &Input{}
		if err := jobvars.Decode(job, inputSchema, input); err != nil {
			return nil, err
		}
		output, err := h.Execute(ctx, input)
		if err != nil {
			return nil, err
		}
		return jobvars.ToMap(output)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	cmp, err := h.service.Compare(ctx, input.EngineRequest())
	if err != nil {
		return nil, err
	}
	h.logger.Debug("conditions compared", map[string]interface{}{
		"diagnosisId":  cmp.DiagnosisID,
		"top":          cmp.TopChoice.ConditionID,
		"alternatives": len(cmp.Alternatives),
	})
	return &Output{
		DiagnosisID:       cmp.DiagnosisID,
		TopConditionID:    cmp.TopChoice.ConditionID,
		AlternativeCount:  len(cmp.Alternatives),
		HasCounterfactual: cmp.Counterfactual != nil,
		Comparison:        cmp,
	}, nil
}
