// Package inbound turns one inbound message record into a dispatched reply.
package inbound

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

// ErrInvalidRecord marks records that can never succeed. Callers acknowledge
// them instead of asking for redelivery.
var ErrInvalidRecord = fmt.Errorf("%w: invalid inbound record", contractx.ErrValidation)

type WhatsappMeta struct {
	PhoneNumberID string `json:"phoneNumberId"`
}

// Record is the queue message produced for every aggregated user message.
type Record struct {
	TenantID     string       `json:"tenantId"`
	UserID       string       `json:"userId"`
	CombinedText string       `json:"combinedText"`
	WhatsappMeta WhatsappMeta `json:"whatsappMeta"`
	MessageID    string       `json:"messageId,omitempty"`
}

// ParseRecord decodes and validates a record body.
func ParseRecord(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r Record) Validate() error {
	var missing []string
	if strings.TrimSpace(r.TenantID) == "" {
		missing = append(missing, "tenantId")
	}
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(r.CombinedText) == "" {
		missing = append(missing, "combinedText")
	}
	if strings.TrimSpace(r.WhatsappMeta.PhoneNumberID) == "" {
		missing = append(missing, "whatsappMeta.phoneNumberId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	return nil
}

// ConversationID keys history per tenant and user.
func (r Record) ConversationID() string {
	return strings.TrimSpace(r.TenantID) + ":" + strings.TrimSpace(r.UserID)
}

// Retryable reports whether redelivering the record could succeed.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrInvalidRecord)
}
