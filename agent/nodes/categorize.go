package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/intent"
)

// Categorize asks the classifier for a label and parses it into the closed
// enumeration. Unparseable output becomes LowConfidence.
func Categorize(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Classifier,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	raw, err := classifier.Classify(ctx, contractx.ClassifyRequest{
		UserMessage:   in.Text,
		MemorySummary: in.MemorySummary,
	})
	if err != nil {
		return nil, err
	}

	label, ok := intent.Parse(raw)
	if !ok {
		zerolog.Ctx(ctx).Debug().
			Str("conversation_id", in.ConversationID).
			Str("raw_label", raw).
			Msg("unrecognized intent label, using LowConfidence")
	}

	in.RawLabel = strings.TrimSpace(raw)
	in.Label = label
	return in, nil
}

// Route resolves the branch for the parsed label.
func Route(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Branch = in.Label.Branch()
	return in, nil
}
