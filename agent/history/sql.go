package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type entryRow struct {
	bun.BaseModel `bun:"table:conversation_history"`

	ID             int64     `bun:"id,pk,autoincrement"`
	ConversationID string    `bun:"conversation_id,notnull"`
	Role           string    `bun:"role,notnull"`
	Message        string    `bun:"message,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

// SQLStore keeps history in a SQL table through bun. It serves both the
// Postgres and SQLite backends.
type SQLStore struct {
	db         *bun.DB
	maxEntries int
}

// OpenPostgres connects with pgdriver and prepares the history table.
func OpenPostgres(ctx context.Context, dsn string, maxEntries int) (*SQLStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return NewSQLStore(ctx, bun.NewDB(sqldb, pgdialect.New()), maxEntries)
}

// OpenSQLite opens dsn with go-sqlite3, creating the parent directory of a
// file database when needed.
func OpenSQLite(ctx context.Context, dsn string, maxEntries int) (*SQLStore, error) {
	if path := sqliteFilePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1)
	return NewSQLStore(ctx, bun.NewDB(sqldb, sqlitedialect.New()), maxEntries)
}

// NewSQLStore pings db and creates the table and index if missing.
func NewSQLStore(ctx context.Context, db *bun.DB, maxEntries int) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*entryRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*entryRow)(nil)).
		Index("conversation_history_conversation_idx").
		Column("conversation_id", "id").
		IfNotExists().
		Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history index: %w", err)
	}

	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &SQLStore{db: db, maxEntries: maxEntries}, nil
}

func (s *SQLStore) Load(ctx context.Context, conversationID string) ([]contractx.Entry, error) {
	id, err := validConversation(conversationID)
	if err != nil {
		return nil, err
	}

	var rows []entryRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("conversation_id = ?", id).
		Order("id DESC").
		Limit(s.maxEntries).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("select history %s: %w", id, err)
	}

	entries := make([]contractx.Entry, len(rows))
	for i, row := range rows {
		entries[len(rows)-1-i] = contractx.Entry{
			Role:      contractx.Role(row.Role),
			Message:   row.Message,
			CreatedAt: row.CreatedAt.UTC(),
		}
	}
	return entries, nil
}

// Append inserts entries and deletes rows beyond the newest maxEntries in one
// transaction.
func (s *SQLStore) Append(ctx context.Context, conversationID string, entries ...contractx.Entry) error {
	id, err := validConversation(conversationID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		at := e.CreatedAt
		if at.IsZero() {
			at = now
		}
		rows = append(rows, entryRow{
			ConversationID: id,
			Role:           string(e.Role),
			Message:        e.Message,
			CreatedAt:      at.UTC(),
		})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert history %s: %w", id, err)
		}

		var cutoff int64
		err := tx.NewSelect().
			Model((*entryRow)(nil)).
			Column("id").
			Where("conversation_id = ?", id).
			Order("id DESC").
			Limit(1).
			Offset(s.maxEntries).
			Scan(ctx, &cutoff)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find history cutoff %s: %w", id, err)
		}

		if _, err := tx.NewDelete().
			Model((*entryRow)(nil)).
			Where("conversation_id = ?", id).
			Where("id <= ?", cutoff).
			Exec(ctx); err != nil {
			return fmt.Errorf("trim history %s: %w", id, err)
		}
		return nil
	})
}

func (s *SQLStore) Reset(ctx context.Context, conversationID string) error {
	id, err := validConversation(conversationID)
	if err != nil {
		return err
	}
	if _, err := s.db.NewDelete().
		Model((*entryRow)(nil)).
		Where("conversation_id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("reset history %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// sqliteFilePath returns the on-disk path of dsn, or "" for in-memory
// databases.
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return ""
		}
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return ""
	}
	return path
}
