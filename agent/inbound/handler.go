package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/dispatch"
	logx "github.com/tanpawarit/Chative-Dental-Assistant/pkg/logger"
)

type TurnRunner interface {
	HandleTurn(ctx context.Context, conversationID string, text string) (orchestrator.TurnResult, error)
}

// Outcome is the result of a handled record.
type Outcome struct {
	CorrelationID string
	Turn          orchestrator.TurnResult
}

type Handler struct {
	turns      TurnRunner
	dispatcher dispatch.Dispatcher
	history    contractx.HistoryStore

	now func() time.Time
}

// NewHandler wires a handler. history may be nil when another service owns
// the conversation log.
func NewHandler(turns TurnRunner, dispatcher dispatch.Dispatcher, history contractx.HistoryStore) (*Handler, error) {
	if turns == nil {
		return nil, errors.New("turn runner is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	return &Handler{
		turns:      turns,
		dispatcher: dispatcher,
		history:    history,
		now:        time.Now,
	}, nil
}

// HandleRaw parses body and handles it.
func (h *Handler) HandleRaw(ctx context.Context, body []byte) (Outcome, error) {
	rec, err := ParseRecord(body)
	if err != nil {
		return Outcome{}, err
	}
	return h.Handle(ctx, rec)
}

// Handle runs one turn for rec, dispatches the reply and appends both sides
// of the exchange to history. Any failure fails the record.
func (h *Handler) Handle(ctx context.Context, rec Record) (Outcome, error) {
	if err := rec.Validate(); err != nil {
		return Outcome{}, err
	}

	correlationID := strings.TrimSpace(rec.MessageID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logx.WithTurn(ctx, rec.TenantID, rec.UserID, correlationID)
	logger := zerolog.Ctx(ctx)

	receivedAt := h.now()
	conversationID := rec.ConversationID()

	turn, err := h.turns.HandleTurn(ctx, conversationID, rec.CombinedText)
	if err != nil {
		logger.Error().Err(err).Msg("turn failed")
		return Outcome{}, fmt.Errorf("handle turn: %w", err)
	}

	if err := h.dispatcher.Dispatch(ctx, dispatch.Reply{
		TenantID:      rec.TenantID,
		UserID:        rec.UserID,
		PhoneNumberID: rec.WhatsappMeta.PhoneNumberID,
		Text:          turn.Reply,
		MessageID:     correlationID,
	}); err != nil {
		logger.Error().Err(err).Str("branch", string(turn.Branch)).Msg("reply dispatch failed")
		return Outcome{}, err
	}

	if h.history != nil {
		if err := h.history.Append(ctx, conversationID,
			contractx.HumanEntry(strings.TrimSpace(rec.CombinedText), receivedAt),
			contractx.AgentEntry(turn.Reply, h.now()),
		); err != nil {
			logger.Error().Err(err).Msg("history append failed after dispatch")
			return Outcome{}, fmt.Errorf("append history: %w", err)
		}
	}

	logger.Info().
		Str("label", string(turn.Label)).
		Str("branch", string(turn.Branch)).
		Msg("turn handled")
	return Outcome{CorrelationID: correlationID, Turn: turn}, nil
}
