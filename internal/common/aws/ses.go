// internal/common/aws/ses.go
package aws

import (
	"context"
	"errors"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the part of the SES client the mailer uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESClient sends alert emails from a fixed address.
type SESClient struct {
	api  SESAPI
	from string
}

func NewSESClient(api SESAPI, from string) *SESClient {
	return &SESClient{api: api, from: from}
}

func NewSESClientFromConfig(cfg awssdk.Config, from string) *SESClient {
	return NewSESClient(ses.NewFromConfig(cfg), from)
}

// SendAlert emails to every recipient in one message. The html body is
// optional. It returns the SES message id.
func (s *SESClient) SendAlert(ctx context.Context, to []string, subject, text, html string) (string, error) {
	if len(to) == 0 {
		return "", errors.New("no email recipients configured")
	}

	body := &types.Body{Text: &types.Content{Data: awssdk.String(text), Charset: awssdk.String("UTF-8")}}
	if html != "" {
		body.Html = &types.Content{Data: awssdk.String(html), Charset: awssdk.String("UTF-8")}
	}

	out, err := s.api.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body:    body,
		},
		Source: awssdk.String(s.from),
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}
