package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.FinalAnswer)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: %s branch returned empty message", contractx.ErrValidation, in.Branch)
	}
	return GraphOutput{
		Reply:    reply,
		Label:    in.Label,
		RawLabel: in.RawLabel,
		Branch:   in.Branch,
		Summary:  in.MemorySummary,
		History:  len(in.History),
	}, nil
}
