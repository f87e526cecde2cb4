package responder

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Dental-Assistant/agent/prompt"
)

type classifierImpl struct {
	runner compose.Runnable[map[string]any, string]
}

func newClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*classifierImpl, error) {
	runner, err := compileTextChain(ctx, chatModel, systemPrompt, promptx.TurnInput, "responder.categorize")
	if err != nil {
		return nil, err
	}
	return &classifierImpl{runner: runner}, nil
}

func (c *classifierImpl) Classify(ctx context.Context, req contractx.ClassifyRequest) (string, error) {
	out, err := c.runner.Invoke(ctx, map[string]any{
		"message": req.UserMessage,
		"memory":  req.MemorySummary,
	})
	if err != nil {
		return "", fmt.Errorf("%w: categorize: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}
