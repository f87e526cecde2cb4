package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/intent"
)

var (
	ErrInvalidMessage      = errors.New("message is empty")
	ErrInvalidConversation = errors.New("conversation id is empty")
)

type GraphInput struct {
	ConversationID string
	Text           string
}

// GraphOutput is the result of one turn. Reply is never empty on success.
type GraphOutput struct {
	Reply    string
	Label    intent.Label
	RawLabel string
	Branch   intent.Branch
	Summary  string
	History  int
}

// GraphState is the turn state threaded through every node. Nodes only add
// to it.
type GraphState struct {
	ConversationID string
	Text           string
	Now            time.Time

	History       []contractx.Entry
	MemorySummary string
	RawLabel      string
	Label         intent.Label
	Branch        intent.Branch
	Doctors       string

	FinalAnswer string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		return nil, ErrInvalidConversation
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		ConversationID: conversationID,
		Text:           text,
		Now:            nowFn().UTC(),
	}, nil
}
