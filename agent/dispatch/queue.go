package dispatch

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Publisher is satisfied by *qstash.Client and *sqsx.Publisher.
type Publisher interface {
	PublishJSON(ctx context.Context, destination string, payload any) (string, error)
}

type DeliverMessage struct {
	TenantID      string          `json:"tenantId"`
	UserID        string          `json:"userId"`
	PhoneNumberID string          `json:"phoneNumberId"`
	MessageBody   string          `json:"messageBody"`
	Source        string          `json:"source"`
	Metadata      DeliverMetadata `json:"metadata"`
	MessageID     string          `json:"messageId,omitempty"`
}

type DeliverMetadata struct {
	Producer string `json:"producer"`
}

type PersistMessage struct {
	TenantID    string `json:"tenantId"`
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	MessageBody string `json:"messageBody"`
	Source      string `json:"source"`
	MessageID   string `json:"messageId,omitempty"`
}

type queueDispatcher struct {
	pub     Publisher
	deliver string
	persist string
}

// NewQueue publishes a deliver message and then a persist message for every
// reply.
func NewQueue(pub Publisher, deliverDestination, persistDestination string) Dispatcher {
	return &queueDispatcher{
		pub:     pub,
		deliver: strings.TrimSpace(deliverDestination),
		persist: strings.TrimSpace(persistDestination),
	}
}

func (d *queueDispatcher) Dispatch(ctx context.Context, r Reply) error {
	if err := r.validate(); err != nil {
		return err
	}

	deliverID, err := d.pub.PublishJSON(ctx, d.deliver, DeliverMessage{
		TenantID:      r.TenantID,
		UserID:        r.UserID,
		PhoneNumberID: r.PhoneNumberID,
		MessageBody:   r.Text,
		Source:        source,
		Metadata:      DeliverMetadata{Producer: producer},
		MessageID:     r.MessageID,
	})
	if err != nil {
		return &Error{Op: "publish deliver to " + d.deliver, Err: err}
	}

	persistID, err := d.pub.PublishJSON(ctx, d.persist, PersistMessage{
		TenantID:    r.TenantID,
		UserID:      r.UserID,
		Role:        "AGENT",
		MessageBody: r.Text,
		Source:      source,
		MessageID:   r.MessageID,
	})
	if err != nil {
		return &Error{Op: "publish persist to " + d.persist, Err: err}
	}

	zerolog.Ctx(ctx).Debug().
		Str("deliver_id", deliverID).
		Str("persist_id", persistID).
		Msg("reply queued")
	return nil
}
