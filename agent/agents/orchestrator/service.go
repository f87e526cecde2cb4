package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Dental-Assistant/agent/nodes"
)

var (
	ErrInvalidMessage      = nodex.ErrInvalidMessage
	ErrInvalidConversation = nodex.ErrInvalidConversation
)

// TurnResult carries the reply plus the intermediate values of the turn.
type TurnResult = nodex.GraphOutput

type Config struct {
	// Doctors feeds the schedule branch. Optional.
	Doctors contractx.DoctorDirectory
	// Table overrides DefaultTable.
	Table *Table
}

type Orchestrator struct {
	models  contractx.Registry
	history contractx.HistoryReader
	doctors contractx.DoctorDirectory
	facts   contractx.Facts

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

// New compiles the turn graph. history may be nil for stateless turns.
func New(
	models contractx.Registry,
	history contractx.HistoryReader,
	facts contractx.Facts,
	cfg Config,
) (*Orchestrator, error) {
	if models == nil {
		return nil, errors.New("model registry is required")
	}

	o := &Orchestrator{
		models:  models,
		history: history,
		doctors: cfg.Doctors,
		facts:   facts.Trimmed(),
		now:     time.Now,
	}

	table := DefaultTable()
	if cfg.Table != nil {
		table = *cfg.Table
	}

	graphRunner, err := o.compileTurnGraph(context.Background(), table)
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn runs one turn for conversationID and returns the final answer
// together with the label, branch and memory summary it was produced from.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID string, text string) (TurnResult, error) {
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		ConversationID: conversationID,
		Text:           text,
	})
	if err != nil {
		return TurnResult{}, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("conversation_id", conversationID).
		Str("label", string(out.Label)).
		Str("branch", string(out.Branch)).
		Int("history", out.History).
		Msg("turn completed")
	return out, nil
}

func (o *Orchestrator) HandleMessage(ctx context.Context, conversationID string, text string) (string, error) {
	out, err := o.HandleTurn(ctx, conversationID, text)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}
