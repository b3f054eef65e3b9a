package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/skillbridge/messaging-server/internal/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id   TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		kind        TEXT NOT NULL,
		content     TEXT NOT NULL DEFAULT '',
		attachments TEXT NOT NULL DEFAULT '[]',
		project_id  TEXT NOT NULL DEFAULT '',
		is_read     BOOLEAN NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair
		ON messages(sender_id, receiver_id, id);
	CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages(receiver_id, is_read);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMessage persists a message, assigning its canonical ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	createdAt := time.Now().UTC()
	query := `
		INSERT INTO messages (sender_id, receiver_id, kind, content, attachments, project_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.SenderID, msg.ReceiverID, msg.Kind, msg.Content, string(attachments), msg.ProjectID, createdAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt
	msg.IsRead = false
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, kind, content, attachments, project_id, is_read, created_at
		FROM messages
		WHERE id = ?
	`
	return s.scanMessage(s.db.QueryRowContext(ctx, query, id))
}

// MarkMessageRead flips is_read exactly once via a conditional update.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE id = ? AND is_read = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Distinguish "already read" from "does not exist".
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("check message exists: %w", err)
	}
	return false, nil
}

// ListMessages retrieves the thread between two users, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID, otherUserID string, f store.ListFilter) ([]*store.Message, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, sender_id, receiver_id, kind, content, attachments, project_id, is_read, created_at
		FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
	`
	args := []any{userID, otherUserID, otherUserID, userID}

	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.BeforeID > 0 {
		query += ` AND id < ?`
		args = append(args, f.BeforeID)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*store.Message
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ListConversations derives one conversation per counterparty, most recent first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	query := `
		SELECT
			CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS counterparty,
			MAX(id) AS last_id
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		GROUP BY counterparty
		ORDER BY last_id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	type pair struct {
		counterparty string
		lastID       int64
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.counterparty, &p.lastID); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*store.Conversation, 0, len(pairs))
	for _, p := range pairs {
		last, err := s.GetMessage(ctx, p.lastID)
		if err != nil {
			return nil, err
		}

		var unread int
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND sender_id = ? AND is_read = 0`,
			userID, p.counterparty).Scan(&unread)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}

		out = append(out, &store.Conversation{
			CounterpartyID: p.counterparty,
			LastMessage:    last,
			UnreadCount:    unread,
		})
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var attachments string
	err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Kind,
		&msg.Content, &attachments, &msg.ProjectID, &msg.IsRead, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	return &msg, nil
}
