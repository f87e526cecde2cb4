// Package sqsx publishes JSON messages to AWS SQS queues.
package sqsx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type sendAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Publisher struct {
	api sendAPI
}

func NewPublisher(cfg aws.Config) *Publisher {
	return &Publisher{api: sqs.NewFromConfig(cfg)}
}

// PublishJSON sends payload to the queue URL and returns the SQS message id.
func (p *Publisher) PublishJSON(ctx context.Context, queueURL string, payload any) (string, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return "", errors.New("sqs queue url is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal sqs payload: %w", err)
	}

	out, err := p.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("send sqs message to %s: %w", queueURL, err)
	}
	return aws.ToString(out.MessageId), nil
}
