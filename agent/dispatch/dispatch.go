// Package dispatch delivers a turn's reply to the user, either by calling the
// messaging API directly or by publishing deliver and persist messages to a
// queue for downstream services.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

const (
	ModeDirect = "direct"
	ModeQueue  = "queue"

	ChannelMeta   = "meta"
	ChannelTwilio = "twilio"

	QueueQStash = "qstash"
	QueueSQS    = "sqs"

	source   = "chat-service"
	producer = "agent-lambda"
)

// Reply is everything needed to deliver one answer.
type Reply struct {
	TenantID      string
	UserID        string
	PhoneNumberID string
	Text          string
	MessageID     string
}

func (r Reply) validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: reply text is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user id is empty", contractx.ErrValidation)
	}
	return nil
}

type Dispatcher interface {
	Dispatch(ctx context.Context, r Reply) error
}

// Error is a failed send or publish. errors.Is(err, contract.ErrDispatch)
// holds for every Error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == contractx.ErrDispatch }

type Config struct {
	Mode               string `default:"direct"`
	Channel            string `default:"meta"`
	Queue              string `default:"qstash"`
	DeliverDestination string `split_words:"true"`
	PersistDestination string `split_words:"true"`
}

func (c Config) Validate() error {
	switch lower(c.Mode) {
	case ModeDirect:
		switch lower(c.Channel) {
		case ChannelMeta, ChannelTwilio:
		default:
			return fmt.Errorf("%w: unknown dispatch channel %q", contractx.ErrConfig, c.Channel)
		}
	case ModeQueue:
		switch lower(c.Queue) {
		case QueueQStash, QueueSQS:
		default:
			return fmt.Errorf("%w: unknown dispatch queue %q", contractx.ErrConfig, c.Queue)
		}
		if strings.TrimSpace(c.DeliverDestination) == "" || strings.TrimSpace(c.PersistDestination) == "" {
			return fmt.Errorf("%w: DISPATCH_DELIVER_DESTINATION and DISPATCH_PERSIST_DESTINATION are required in queue mode", contractx.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown dispatch mode %q", contractx.ErrConfig, c.Mode)
	}
	return nil
}

// Builders construct the backing clients on demand so that only the selected
// one needs configuration.
type Builders struct {
	Meta   func() (MetaSender, error)
	Twilio func() (TwilioSender, error)
	QStash func() (Publisher, error)
	SQS    func() (Publisher, error)
}

func New(cfg Config, b Builders) (Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if lower(cfg.Mode) == ModeDirect {
		switch lower(cfg.Channel) {
		case ChannelTwilio:
			sender, err := build(b.Twilio, "twilio")
			if err != nil {
				return nil, err
			}
			return NewTwilio(sender), nil
		default:
			sender, err := build(b.Meta, "meta")
			if err != nil {
				return nil, err
			}
			return NewMeta(sender), nil
		}
	}

	builder, name := b.QStash, QueueQStash
	if lower(cfg.Queue) == QueueSQS {
		builder, name = b.SQS, QueueSQS
	}
	pub, err := build(builder, name)
	if err != nil {
		return nil, err
	}
	return NewQueue(pub, cfg.DeliverDestination, cfg.PersistDestination), nil
}

func build[T any](fn func() (T, error), name string) (T, error) {
	var zero T
	if fn == nil {
		return zero, fmt.Errorf("%w: no %s client available", contractx.ErrConfig, name)
	}
	v, err := fn()
	if err != nil {
		return zero, fmt.Errorf("build %s client: %w", name, err)
	}
	return v, nil
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
