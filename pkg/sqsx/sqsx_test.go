package sqsx

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func TestPublishJSON(t *testing.T) {
	t.Parallel()

	api := &fakeSQS{}
	p := &Publisher{api: api}
	id, err := p.PublishJSON(context.Background(), "https://sqs/q", map[string]string{"role": "AGENT"})
	if err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	if id != "sqs-1" {
		t.Fatalf("id = %q", id)
	}
	if aws.ToString(api.inputs[0].QueueUrl) != "https://sqs/q" {
		t.Fatalf("queue url = %q", aws.ToString(api.inputs[0].QueueUrl))
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(aws.ToString(api.inputs[0].MessageBody)), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["role"] != "AGENT" {
		t.Fatalf("body = %#v", body)
	}
}

func TestPublishJSONErrors(t *testing.T) {
	t.Parallel()

	p := &Publisher{api: &fakeSQS{err: errors.New("throttled")}}
	if _, err := p.PublishJSON(context.Background(), "", struct{}{}); err == nil {
		t.Fatal("expected error for empty queue url")
	}
	if _, err := p.PublishJSON(context.Background(), "https://sqs/q", struct{}{}); err == nil {
		t.Fatal("expected send error")
	}
}
