package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/common/metrics"
	"diagnosis-workers/internal/common/observability"
)

// commandTimeout bounds the complete, fail and throw calls sent after the job
// function returns. They run outside the job deadline.
const commandTimeout = 10 * time.Second

// JobFunc does the work of one job and returns the variables to complete it
// with.
type JobFunc func(ctx context.Context, job entities.Job) (map[string]interface{}, error)

// JobRunner wraps a JobFunc with the bookkeeping every worker shares:
// timeout, span, prometheus and otel metrics, completion and failure.
type JobRunner struct {
	taskType string
	timeout  time.Duration
	logger   logger.Logger
	errors   *apperrors.ErrorHandler
	obs      *observability.Observability
}

func NewJobRunner(taskType string, timeout time.Duration, log logger.Logger, obs *observability.Observability) *JobRunner {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &JobRunner{
		taskType: taskType,
		timeout:  timeout,
		logger:   log,
		errors:   apperrors.NewErrorHandler(log),
		obs:      obs,
	}
}

func (r *JobRunner) Run(client worker.JobClient, job entities.Job, fn JobFunc) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(r.taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(r.taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ctx, span := r.obs.StartSpan(ctx, "job "+r.taskType,
		attribute.Int64("job.key", job.GetKey()),
		attribute.Int64("process.instance_key", job.GetProcessInstanceKey()),
	)
	defer span.End()

	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             r.taskType,
	})

	vars, err := fn(ctx, job)

	cmdCtx, cmdCancel := context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
	defer cmdCancel()

	if err != nil {
		span.RecordError(err)
		code := string(apperrors.Normalize(err).Code)
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, code).Inc()
		r.obs.RecordJobProcessed(cmdCtx, "failed")
		r.obs.RecordJobDuration(cmdCtx, time.Since(start), "failed")
		r.errors.HandleJobError(cmdCtx, client, job, err)
		return
	}

	if err := r.complete(cmdCtx, client, job, vars); err != nil {
		span.RecordError(err)
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(apperrors.ErrCodeWorkflowEngine)).Inc()
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(time.Since(start).Seconds())
	r.obs.RecordJobProcessed(cmdCtx, "completed")
	r.obs.RecordJobDuration(cmdCtx, time.Since(start), "completed")
}

func (r *JobRunner) complete(ctx context.Context, client worker.JobClient, job entities.Job, vars map[string]interface{}) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(vars)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": r.taskType,
		})
		return err
	}
	if _, err := request.Send(ctx); err != nil {
		r.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": r.taskType,
		})
		return err
	}
	r.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.GetKey(),
		"worker": r.taskType,
	})
	return nil
}
