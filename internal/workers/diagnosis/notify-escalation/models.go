package notifyescalation

import (
	"context"

	"diagnosis-workers/internal/common/validation"
	"diagnosis-workers/internal/diagnosis/service"
)

// Delivery channels, also used as metric labels.
const (
	ChannelSNS   = "sns"
	ChannelEmail = "email"
)

// Publisher posts an alert to a fan-out topic.
type Publisher interface {
	PublishAlert(ctx context.Context, subject, message string, attrs map[string]string) (string, error)
}

// Mailer emails an alert to a list of recipients.
type Mailer interface {
	SendAlert(ctx context.Context, to []string, subject, text, html string) (string, error)
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"anyOf": [
		{"required": ["urgency"]},
		{"required": ["recommendation"]}
	],
	"properties": {
		"diagnosisId": {"type": "string"},
		"urgency": {"enum": ["high", "medium", "low", "normal"]},
		"escalate": {"type": "boolean"},
		"recommendation": {"type": "object"}
	}
}`)

// Input is the output of recommend-care.
type Input struct {
	DiagnosisID    string                  `json:"diagnosisId,omitempty"`
	Urgency        service.Urgency         `json:"urgency,omitempty"`
	Escalate       *bool                   `json:"escalate,omitempty"`
	Recommendation *service.Recommendation `json:"recommendation,omitempty"`
}

// ShouldEscalate honours an explicit escalate flag, then the
// recommendation, then the bare urgency.
func (i *Input) ShouldEscalate() bool {
	switch {
	case i.Escalate != nil:
		return *i.Escalate
	case i.Recommendation != nil:
		return i.Recommendation.Escalate()
	default:
		return i.Urgency == service.UrgencyHigh
	}
}

type Output struct {
	Escalated    bool     `json:"escalated"`
	Channels     []string `json:"escalationChannels"`
	SNSMessageID string   `json:"snsMessageId,omitempty"`
	SESMessageID string   `json:"emailMessageId,omitempty"`
	SkipReason   string   `json:"escalationSkipReason,omitempty"`
}
