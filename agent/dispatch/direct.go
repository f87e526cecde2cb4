package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

// MetaSender is satisfied by *whatsapp.Sender.
type MetaSender interface {
	SendText(ctx context.Context, phoneNumberID, to, body string) error
}

// TwilioSender is satisfied by *twilio.Client.
type TwilioSender interface {
	SendText(ctx context.Context, to, body string) error
}

type metaDispatcher struct {
	sender MetaSender
}

func NewMeta(sender MetaSender) Dispatcher {
	return &metaDispatcher{sender: sender}
}

func (d *metaDispatcher) Dispatch(ctx context.Context, r Reply) error {
	if err := r.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.PhoneNumberID) == "" {
		return fmt.Errorf("%w: phone number id is empty", contractx.ErrValidation)
	}
	if err := d.sender.SendText(ctx, r.PhoneNumberID, r.UserID, r.Text); err != nil {
		return &Error{Op: "whatsapp send", Err: err}
	}
	zerolog.Ctx(ctx).Debug().Str("channel", ChannelMeta).Msg("reply sent")
	return nil
}

type twilioDispatcher struct {
	sender TwilioSender
}

func NewTwilio(sender TwilioSender) Dispatcher {
	return &twilioDispatcher{sender: sender}
}

func (d *twilioDispatcher) Dispatch(ctx context.Context, r Reply) error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := d.sender.SendText(ctx, r.UserID, r.Text); err != nil {
		return &Error{Op: "twilio send", Err: err}
	}
	zerolog.Ctx(ctx).Debug().Str("channel", ChannelTwilio).Msg("reply sent")
	return nil
}
