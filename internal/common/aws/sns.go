// internal/common/aws/sns.go
package aws

import (
	"context"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// maxSubjectLen is the SNS limit for email-protocol subjects.
const maxSubjectLen = 100

// SNSAPI is the part of the SNS client the publisher uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// LoadConfig resolves AWS credentials from the default chain.
func LoadConfig(ctx context.Context, region string) (awssdk.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

// SNSClient publishes alerts to one topic.
type SNSClient struct {
	api      SNSAPI
	topicARN string
}

func NewSNSClient(api SNSAPI, topicARN string) *SNSClient {
	return &SNSClient{api: api, topicARN: topicARN}
}

// NewSNSClientFromConfig builds the SDK client from cfg.
func NewSNSClientFromConfig(cfg awssdk.Config, topicARN string) *SNSClient {
	return NewSNSClient(sns.NewFromConfig(cfg), topicARN)
}

// PublishAlert sends message to the topic with attrs as string message
// attributes. It returns the SNS message id.
func (s *SNSClient) PublishAlert(ctx context.Context, subject, message string, attrs map[string]string) (string, error) {
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}

	input := &sns.PublishInput{
		TopicArn: awssdk.String(s.topicARN),
		Subject:  awssdk.String(subject),
		Message:  awssdk.String(message),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if attrs[k] == "" {
				continue
			}
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(attrs[k]),
			}
		}
	}

	out, err := s.api.Publish(ctx, input)
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}
