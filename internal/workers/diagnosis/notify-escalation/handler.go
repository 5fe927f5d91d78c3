package notifyescalation

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"diagnosis-workers/internal/common/camunda"
	"diagnosis-workers/internal/common/config"
	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/common/metrics"
	"diagnosis-workers/internal/common/observability"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

const TaskType = "notify-escalation"

type Handler struct {
	config    *Config
	logger    logger.Logger
	publisher Publisher
	mailer    Mailer
	runner    *camunda.JobRunner
}

// HandlerOptions leaves Publisher or Mailer nil for a disabled channel.
type HandlerOptions struct {
	AppConfig     *config.Config
	Publisher     Publisher
	Mailer        Mailer
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
		config:    cfg,
		logger:    log,
		publisher: opts.Publisher,
		mailer:    opts.Mailer,
		runner:    camunda.NewJobRunner(TaskType, cfg.Timeout, log, opts.Observability),
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

// Execute notifies every configured channel. The job fails only when all
// of them fail, so a retry cannot double-send on a channel that worked.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	out := &Output{Channels: []string{}}
	if !input.ShouldEscalate() {
		out.SkipReason = "not urgent"
		return out, nil
	}
	sendEmail := h.mailer != nil && len(h.config.Recipients) > 0
	if h.publisher == nil && !sendEmail {
		h.logger.Warn("escalation requested but no channel is configured", map[string]interface{}{
			"diagnosisId": input.DiagnosisID,
		})
		out.SkipReason = "no channel configured"
		return out, nil
	}

	a := newAlert(input)
	var lastErr error

	if h.publisher != nil {
		id, err := h.publisher.PublishAlert(ctx, a.subject(), a.text(), a.attributes())
		if err != nil {
			lastErr = apperrors.NewNotificationFailedError(ChannelSNS, err)
			h.logger.Warn("sns escalation failed", map[string]interface{}{"error": err.Error(), "diagnosisId": a.DiagnosisID})
		} else {
			out.SNSMessageID = id
			out.Channels = append(out.Channels, ChannelSNS)
			metrics.EscalationsSent.WithLabelValues(ChannelSNS).Inc()
		}
	}

	if sendEmail {
		html, err := a.html()
		if err == nil {
			var id string
			id, err = h.mailer.SendAlert(ctx, h.config.Recipients, a.subject(), a.text(), html)
			if err == nil {
				out.SESMessageID = id
				out.Channels = append(out.Channels, ChannelEmail)
				metrics.EscalationsSent.WithLabelValues(ChannelEmail).Inc()
			}
		}
		if err != nil {
			lastErr = apperrors.NewNotificationFailedError(ChannelEmail, err)
			h.logger.Warn("email escalation failed", map[string]interface{}{"error": err.Error(), "diagnosisId": a.DiagnosisID})
		}
	}

	if len(out.Channels) == 0 {
		return nil, lastErr
	}
	out.Escalated = true
	h.logger.Info("escalation sent", map[string]interface{}{
		"diagnosisId": a.DiagnosisID,
		"channels":    out.Channels,
		"urgency":     string(a.Urgency),
	})
	return out, nil
}
