// Package twilio sends WhatsApp messages through the Twilio REST API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type Config struct {
	AccountSID string `envconfig:"ACCOUNT_SID" required:"true"`
	AuthToken  string `split_words:"true" required:"true"`
	FromNumber string `split_words:"true" required:"true"`
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Client struct {
	api  messageCreator
	from string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio: account SID and auth token must be provided")
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, errors.New("twilio: from number must be provided")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{api: rest.Api, from: whatsappAddress(cfg.FromNumber)}, nil
}

// SendText sends body to the WhatsApp user to. The Twilio SDK call does not
// take a context, so cancellation is only checked before the request.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" || strings.TrimSpace(body) == "" {
		return errors.New("twilio: recipient and body are required")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(c.from)
	params.SetBody(body)

	if _, err := c.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: send message to %s: %w", to, err)
	}
	return nil
}

func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return "whatsapp:" + number
}
