package contextstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/valpere/bubbletran/internal"
)

const DefaultSQLitePath = "bubbletran.db"

type SQLiteStore struct {
	db     *sql.DB
	limits Limits
}

func NewSQLiteStore(dbPath string, limits Limits) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = DefaultSQLitePath
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, limits: limits.withDefaults()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS context_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		timestamp REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_context_conversation ON context_entries(conversation_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetRecent(ctx context.Context, conversationID string, limit int) ([]internal.ContextEntry, error) {
	if conversationID == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, target, timestamp FROM (
			SELECT id, source, target, timestamp FROM context_entries
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, conversationID, s.limits.resolve(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query context: %w", err)
	}
	defer rows.Close()

	var entries []internal.ContextEntry
	for rows.Next() {
		var e internal.ContextEntry
		if err := rows.Scan(&e.Source, &e.Target, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan context entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, conversationID string, entries []internal.ContextEntry) error {
	if conversationID == "" {
		return nil
	}
	cleaned := cleanEntries(entries)
	if len(cleaned) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range cleaned {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO context_entries (conversation_id, source, target, timestamp)
			VALUES (?, ?, ?, ?)
		`, conversationID, e.Source, e.Target, e.Timestamp); err != nil {
			return fmt.Errorf("failed to insert context entry: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM context_entries
		WHERE conversation_id = ? AND id NOT IN (
			SELECT id FROM context_entries
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
	`, conversationID, conversationID, s.limits.MaxEntries); err != nil {
		return fmt.Errorf("failed to trim context: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Conversations(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, COUNT(*), MAX(timestamp)
		FROM context_entries
		GROUP BY conversation_id
		ORDER BY conversation_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum  Summary
			last float64
		)
		if err := rows.Scan(&sum.ConversationID, &sum.Entries, &last); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		sum.LastUpdated = secondsToTime(last)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, conversationID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM context_entries WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
