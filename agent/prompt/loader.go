package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

var (
	//go:embed template/memory.txt
	memoryRaw string

	//go:embed template/categorize.txt
	categorizeRaw string

	//go:embed template/schedule.txt
	scheduleRaw string

	//go:embed template/info.txt
	infoRaw string

	//go:embed template/smalltalk.txt
	smallTalkRaw string

	//go:embed template/low_confidence.txt
	lowConfidenceRaw string
)

// User-turn templates. Variables use eino FString syntax.
const (
	MemoryInput = "Messages:\n{messages}"
	TurnInput   = "User message: {message}\nMemory: {memory}"
)

// PromptSet holds the system prompt for every model call of a turn.
type PromptSet struct {
	Memory        string
	Categorize    string
	Schedule      string
	Info          string
	SmallTalk     string
	LowConfidence string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Memory:        strings.TrimSpace(memoryRaw),
		Categorize:    strings.TrimSpace(categorizeRaw),
		Schedule:      strings.TrimSpace(scheduleRaw),
		Info:          strings.TrimSpace(infoRaw),
		SmallTalk:     strings.TrimSpace(smallTalkRaw),
		LowConfidence: strings.TrimSpace(lowConfidenceRaw),
	}
}

func (p PromptSet) Validate() error {
	for name, body := range map[string]string{
		"memory":         p.Memory,
		"categorize":     p.Categorize,
		"schedule":       p.Schedule,
		"info":           p.Info,
		"smalltalk":      p.SmallTalk,
		"low_confidence": p.LowConfidence,
	} {
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}
	return nil
}
