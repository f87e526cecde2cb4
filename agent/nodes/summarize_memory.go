package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

func SummarizeMemory(
	ctx context.Context,
	in *GraphState,
	summarizer contractx.Summarizer,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	summary, err := summarizer.Summarize(ctx, contractx.SummarizeRequest{History: in.History})
	if err != nil {
		return nil, err
	}
	in.MemorySummary = strings.TrimSpace(summary)
	return in, nil
}
