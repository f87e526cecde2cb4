package responder

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Dental-Assistant/agent/prompt"
)

type formulatorImpl struct {
	name   string
	runner compose.Runnable[map[string]any, string]
}

func newFormulator(ctx context.Context, name string, chatModel einomodel.BaseChatModel, systemPrompt string) (*formulatorImpl, error) {
	runner, err := compileTextChain(ctx, chatModel, systemPrompt, promptx.TurnInput, "responder."+name)
	if err != nil {
		return nil, err
	}
	return &formulatorImpl{name: name, runner: runner}, nil
}

func (f *formulatorImpl) Formulate(ctx context.Context, req contractx.FormulateRequest) (string, error) {
	out, err := f.runner.Invoke(ctx, formulateVars(req))
	if err != nil {
		return "", fmt.Errorf("%w: formulate %s: %v", contractx.ErrModelInvoke, f.name, err)
	}

	reply := cleanReply(out)
	if reply == "" {
		return "", fmt.Errorf("%w: formulator %s returned empty message", contractx.ErrValidation, f.name)
	}
	return reply, nil
}

// formulateVars fills every template variable; missing facts stay empty.
func formulateVars(req contractx.FormulateRequest) map[string]any {
	facts := req.Facts.Trimmed()
	return map[string]any{
		"message":        req.UserMessage,
		"memory":         req.MemorySummary,
		"clinic_name":    facts.Name,
		"clinic_address": facts.Address,
		"clinic_hours":   facts.Hours,
		"clinic_phone":   facts.Phone,
		"clinic_website": facts.Website,
		"doctors":        req.Doctors,
	}
}

var markdownReplacer = strings.NewReplacer("**", "", "__", "", "`", "")

// cleanReply flattens the model output into one plain-text paragraph.
func cleanReply(s string) string {
	lines := strings.Split(markdownReplacer.Replace(s), "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if line == "" {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}
