package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Dental-Assistant/agent/prompt"
)

// MaxSummaryEntries caps how much history is sent to the memory prompt.
const MaxSummaryEntries = 10

type summarizerImpl struct {
	runner compose.Runnable[map[string]any, string]
}

func newSummarizer(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*summarizerImpl, error) {
	runner, err := compileTextChain(ctx, chatModel, systemPrompt, promptx.MemoryInput, "responder.memory")
	if err != nil {
		return nil, err
	}
	return &summarizerImpl{runner: runner}, nil
}

// Summarize condenses the most recent history. Empty history yields an empty
// summary without calling the model.
func (s *summarizerImpl) Summarize(ctx context.Context, req contractx.SummarizeRequest) (string, error) {
	recent := RecentHistory(req.History, MaxSummaryEntries)
	if len(recent) == 0 {
		return "", nil
	}

	blob, err := historyBlob(recent)
	if err != nil {
		return "", fmt.Errorf("%w: encode history: %v", contractx.ErrValidation, err)
	}

	out, err := s.runner.Invoke(ctx, map[string]any{"messages": blob})
	if err != nil {
		return "", fmt.Errorf("%w: memory summary: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}

// RecentHistory returns the last n non-empty entries in order.
func RecentHistory(history []contractx.Entry, n int) []contractx.Entry {
	kept := make([]contractx.Entry, 0, len(history))
	for _, e := range history {
		if strings.TrimSpace(e.Message) == "" {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}

type historyLine struct {
	Role    contractx.Role `json:"role"`
	Message string         `json:"message"`
}

// historyBlob renders one compact JSON object per line.
func historyBlob(entries []contractx.Entry) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		if err := enc.Encode(historyLine{Role: e.Role, Message: e.Message}); err != nil {
			return "", err
		}
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
