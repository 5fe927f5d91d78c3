package recorddiagnosis

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"diagnosis-workers/internal/common/camunda"
	"diagnosis-workers/internal/common/config"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/common/observability"
	"diagnosis-workers/internal/diagnosis/records"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

const TaskType = "record-diagnosis"

type Handler struct {
	logger     logger.Logger
	repository *records.Repository
	runner     *camunda.JobRunner
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Repository    *records.Repository
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
		logger:     log,
		repository: opts.Repository,
		runner:     camunda.NewJobRunner(TaskType, LoadConfig(opts.AppConfig).Timeout, log, opts.Observability),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context, job entities.Job) (map[string]interface{}, error) {
		input := &Input{}
		if err := jobvars.Decode(job, inputSchema, input); err != nil {
			return nil, err
		}
		output, err := h.Execute(ctx, job.GetProcessInstanceKey(), input)
		if err != nil {
			return nil, err
		}
		return jobvars.ToMap(output)
	})
}

// Execute stores the diagnosis. A retried job finds the record already in
// place and completes with recorded=false.
func (h *Handler) Execute(ctx context.Context, processInstanceKey int64, input *Input) (*Output, error) {
	rec := &records.Record{
		ID:                 input.DiagnosisID,
		ProcessInstanceKey: processInstanceKey,
		PrimaryConditionID: input.PrimaryConditionID,
		PrimaryScore:       input.PrimaryScore,
		Reason:             input.ConfidenceReason,
		NeedsClarification: input.NeedsClarification,
		Symptoms:           []string(input.Symptoms),
		DurationDays:       input.DurationDays,
		Urgency:            input.Urgency,
		Result:             input.Diagnosis,
	}
	if rec.Symptoms == nil {
		rec.Symptoms = []string{}
	}

	written, err := h.repository.Save(ctx, rec)
	if err != nil {
		return nil, err
	}
	h.logger.Info("diagnosis recorded", map[string]interface{}{
		"diagnosisId": rec.ID,
		"written":     written,
	})
	return &Output{RecordID: rec.ID, Recorded: written}, nil
}
