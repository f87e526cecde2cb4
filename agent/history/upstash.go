package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

const (
	defaultKeyPrefix     = "dental:history:"
	maxResponseSizeBytes = 2 << 20
)

type UpstashConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	KeyPrefix  string
	MaxEntries int
	TTL        time.Duration
}

// UpstashStore keeps one Redis list per conversation through the Upstash
// REST API. Each element is a JSON encoded entry.
type UpstashStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	maxEntries int
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashStore(cfg UpstashConfig) (*UpstashStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &UpstashStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  prefix,
		maxEntries: maxEntries,
		ttl:        cfg.TTL,
	}, nil
}

// WithHTTPClient swaps the transport, mainly for tests.
func (s *UpstashStore) WithHTTPClient(hc *http.Client) *UpstashStore {
	if hc != nil {
		s.httpClient = hc
	}
	return s
}

func (s *UpstashStore) Load(ctx context.Context, conversationID string) ([]contractx.Entry, error) {
	key, err := s.redisKey(conversationID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"LRANGE", key, -s.maxEntries, -1})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, nil
	}

	var encoded []string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode history list: %w", err)
	}

	entries := make([]contractx.Entry, 0, len(encoded))
	for i, raw := range encoded {
		var e contractx.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal history entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Append pushes entries, trims the list to the configured size and refreshes
// the expiry in one MULTI/EXEC transaction.
func (s *UpstashStore) Append(ctx context.Context, conversationID string, entries ...contractx.Entry) error {
	key, err := s.redisKey(conversationID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	push := []any{"RPUSH", key}
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal history entry: %w", err)
		}
		push = append(push, string(payload))
	}

	commands := [][]any{push, {"LTRIM", key, -s.maxEntries, -1}}
	if s.ttl > 0 {
		commands = append(commands, []any{"EXPIRE", key, ttlSeconds(s.ttl)})
	}
	_, err = s.multiExec(ctx, commands)
	return err
}

func (s *UpstashStore) Reset(ctx context.Context, conversationID string) error {
	key, err := s.redisKey(conversationID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashStore) Close() error { return nil }

func (s *UpstashStore) redisKey(conversationID string) (string, error) {
	id, err := validConversation(conversationID)
	if err != nil {
		return "", err
	}
	return s.keyPrefix + id, nil
}

func (s *UpstashStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	raw, err := s.post(ctx, "", command)
	if err != nil {
		return nil, err
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: redis: %s", contractx.ErrUpstream, parsed.Error)
	}
	return &parsed, nil
}

// multiExec runs commands atomically through the /multi-exec endpoint. Any
// failed command fails the whole call.
func (s *UpstashStore) multiExec(ctx context.Context, commands [][]any) ([]redisRESTResponse, error) {
	if len(commands) == 0 {
		return nil, errors.New("empty redis transaction")
	}

	raw, err := s.post(ctx, "/multi-exec", commands)
	if err != nil {
		return nil, err
	}

	var results []redisRESTResponse
	if err := json.Unmarshal(raw, &results); err != nil {
		var single redisRESTResponse
		if json.Unmarshal(raw, &single) == nil && single.Error != "" {
			return nil, fmt.Errorf("%w: redis transaction: %s", contractx.ErrUpstream, single.Error)
		}
		return nil, fmt.Errorf("decode redis transaction response: %w", err)
	}
	if len(results) != len(commands) {
		return nil, fmt.Errorf("%w: redis transaction returned %d results for %d commands", contractx.ErrUpstream, len(results), len(commands))
	}
	for i, r := range results {
		if r.Error != "" {
			return nil, fmt.Errorf("%w: redis %v: %s", contractx.ErrUpstream, commands[i][0], r.Error)
		}
	}
	return results, nil
}

func (s *UpstashStore) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: redis http status=%d body=%s", contractx.ErrUpstream, resp.StatusCode, string(raw))
	}
	return raw, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
