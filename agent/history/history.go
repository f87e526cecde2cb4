// Package history persists conversation entries outside the process so each
// turn can rebuild its state from the stored log.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

var ErrInvalidConversation = errors.New("conversation id is empty")

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	defaultMaxEntries = 50
)

// Store is a history store that holds external resources.
type Store interface {
	contractx.HistoryStore
	// Reset drops every entry of one conversation.
	Reset(ctx context.Context, conversationID string) error
	Close() error
}

type Config struct {
	Backend    string        `default:"memory"`
	URL        string        `split_words:"true"`
	Token      string        `split_words:"true"`
	DSN        string        `envconfig:"DSN"`
	KeyPrefix  string        `split_words:"true" default:"dental:history:"`
	MaxEntries int           `split_words:"true" default:"50"`
	TTL        time.Duration `envconfig:"TTL" default:"168h"`
	Timeout    time.Duration `split_words:"true" default:"10s"`
}

func (c Config) Validate() error {
	switch c.backend() {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.URL) == "" || strings.TrimSpace(c.Token) == "" {
			return fmt.Errorf("%w: HISTORY_URL and HISTORY_TOKEN are required for redis", contractx.ErrConfig)
		}
	case BackendPostgres, BackendSQLite:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("%w: HISTORY_DSN is required for %s", contractx.ErrConfig, c.backend())
		}
	default:
		return fmt.Errorf("%w: unknown history backend %q", contractx.ErrConfig, c.Backend)
	}
	return nil
}

func (c Config) backend() string {
	return strings.ToLower(strings.TrimSpace(c.Backend))
}

func (c Config) maxEntries() int {
	if c.MaxEntries <= 0 {
		return defaultMaxEntries
	}
	return c.MaxEntries
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.backend() {
	case BackendRedis:
		return NewUpstashStore(UpstashConfig{
			URL:        cfg.URL,
			Token:      cfg.Token,
			Timeout:    cfg.Timeout,
			KeyPrefix:  cfg.KeyPrefix,
			MaxEntries: cfg.maxEntries(),
			TTL:        cfg.TTL,
		})
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN, cfg.maxEntries())
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.DSN, cfg.maxEntries())
	default:
		return NewMemoryStore(cfg.maxEntries()), nil
	}
}

func validConversation(conversationID string) (string, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return "", ErrInvalidConversation
	}
	return id, nil
}

// keepLast returns the tail of entries bounded by n.
func keepLast(entries []contractx.Entry, n int) []contractx.Entry {
	if n > 0 && len(entries) > n {
		return entries[len(entries)-n:]
	}
	return entries
}
