// Command lambda runs the agent as an SQS-triggered AWS Lambda function.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Dental-Assistant/agent/app"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/inbound"
	_ "github.com/tanpawarit/Chative-Dental-Assistant/pkg/logger/autoload"
)

type recordHandler interface {
	HandleRaw(ctx context.Context, body []byte) (inbound.Outcome, error)
}

// handleBatch processes every record and reports only retryable failures so
// SQS redelivers them. Invalid records are logged and dropped.
func handleBatch(ctx context.Context, h recordHandler, event events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, msg := range event.Records {
		logger := log.Ctx(ctx).With().Str("sqs_message_id", msg.MessageId).Logger()
		_, err := h.HandleRaw(logger.WithContext(ctx), []byte(msg.Body))
		if err == nil {
			continue
		}
		if !inbound.Retryable(err) {
			logger.Warn().Err(err).Msg("dropping invalid record")
			continue
		}
		logger.Error().Err(err).Msg("record failed; will retry")
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
			ItemIdentifier: msg.MessageId,
		})
	}
	return resp
}

func main() {
	ctx := context.Background()
	a, err := app.Build(ctx, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent")
	}

	lambda.Start(func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		return handleBatch(ctx, a.Inbound, event), nil
	})
}
