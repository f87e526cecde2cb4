package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

// LoadHistory reads the persisted history and appends the inbound message.
// A nil reader means the conversation has no stored history.
func LoadHistory(
	ctx context.Context,
	in *GraphState,
	reader contractx.HistoryReader,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	var history []contractx.Entry
	if reader != nil {
		stored, err := reader.Load(ctx, in.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load history %s: %w", in.ConversationID, err)
		}
		history = append(history, stored...)
	}

	in.History = append(history, contractx.HumanEntry(in.Text, in.Now))
	return in, nil
}
