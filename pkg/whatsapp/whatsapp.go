// Package whatsapp sends text messages through the Meta WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	maxErrorBodyChars    = 2000
	maxResponseSizeBytes = 1 << 20
	accessTokenKey       = "WHATSAPP_ACCESS_TOKEN"
)

var ErrEmptyArgument = errors.New("whatsapp: empty argument")

type Config struct {
	BaseURL        string        `split_words:"true" default:"https://graph.facebook.com"`
	APIVersion     string        `split_words:"true" default:"v20.0"`
	SecretPrefix   string        `split_words:"true"`
	AccessToken    string        `split_words:"true"`
	Timeout        time.Duration `split_words:"true" default:"10s"`
	TokenCacheSize int           `split_words:"true" default:"64"`
	TokenCacheTTL  time.Duration `split_words:"true" default:"15m"`
}

// SecretSource is the subset of secrets.Fetcher the sender needs.
type SecretSource interface {
	FetchJSON(ctx context.Context, name string) (map[string]string, error)
}

// SendError is a non-2xx response from the Cloud API.
type SendError struct {
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("whatsapp api error %d: %s", e.Status, e.Body)
}

type Sender struct {
	baseURL      string
	apiVersion   string
	secretPrefix string
	staticToken  string
	secrets      SecretSource
	tokens       *expirable.LRU[string, string]
	httpClient   *http.Client
}

// NewSender builds a sender. Tokens come from cfg.AccessToken when set, or
// from the secret named SecretPrefix+phoneNumberID.
func NewSender(cfg Config, secrets SecretSource) (*Sender, error) {
	staticToken := strings.TrimSpace(cfg.AccessToken)
	prefix := strings.TrimSpace(cfg.SecretPrefix)
	if staticToken == "" && (prefix == "" || secrets == nil) {
		return nil, errors.New("whatsapp: access token or secret prefix is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	size := cfg.TokenCacheSize
	if size <= 0 {
		size = 64
	}

	return &Sender{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiVersion:   strings.Trim(strings.TrimSpace(cfg.APIVersion), "/"),
		secretPrefix: prefix,
		staticToken:  staticToken,
		secrets:      secrets,
		tokens:       expirable.NewLRU[string, string](size, nil, cfg.TokenCacheTTL),
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// WithHTTPClient swaps the transport, mainly for tests.
func (s *Sender) WithHTTPClient(hc *http.Client) *Sender {
	if hc != nil {
		s.httpClient = hc
	}
	return s
}

type textMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

// SendText delivers body to the user from the business number phoneNumberID.
func (s *Sender) SendText(ctx context.Context, phoneNumberID, to, body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: message body", ErrEmptyArgument)
	}
	if strings.TrimSpace(phoneNumberID) == "" {
		return fmt.Errorf("%w: phone number id", ErrEmptyArgument)
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: recipient", ErrEmptyArgument)
	}

	token, err := s.accessToken(ctx, phoneNumberID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textPayload{Body: body},
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.apiVersion, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp http request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read whatsapp response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if resp.StatusCode == http.StatusUnauthorized {
			s.tokens.Remove(phoneNumberID)
		}
		return &SendError{Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBodyChars)}
	}
	return nil
}

func (s *Sender) accessToken(ctx context.Context, phoneNumberID string) (string, error) {
	if s.staticToken != "" {
		return s.staticToken, nil
	}
	if token, ok := s.tokens.Get(phoneNumberID); ok {
		return token, nil
	}

	secretID := s.secretPrefix + phoneNumberID
	secret, err := s.secrets.FetchJSON(ctx, secretID)
	if err != nil {
		return "", fmt.Errorf("whatsapp token secret %s: %w", secretID, err)
	}
	token := strings.TrimSpace(secret[accessTokenKey])
	if token == "" {
		return "", fmt.Errorf("secret %s missing %s", secretID, accessTokenKey)
	}
	s.tokens.Add(phoneNumberID, token)
	return token, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
