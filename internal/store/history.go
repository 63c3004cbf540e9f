package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultHistoryLimit = 50

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendHistory(ctx context.Context, e execer, contactID int64, text string, at int64) error {
	if _, err := e.ExecContext(ctx, `
		INSERT INTO context_history (contact_id, context_text, created_at)
		VALUES (?, ?, ?)`, contactID, text, at); err != nil {
		return fmt.Errorf("append context history: %w", err)
	}
	return nil
}

// AppendContextHistory records text against a saved contact.
func (db *DB) AppendContextHistory(ctx context.Context, contactID int64, text string) error {
	return appendHistory(ctx, db.DB, contactID, text, millis(db.now()))
}

// ContextHistory returns up to limit history entries for a contact, newest first.
func (db *DB) ContextHistory(ctx context.Context, contactID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, contact_id, context_text, created_at
		FROM context_history
		WHERE contact_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, contactID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h       HistoryEntry
			created int64
		)
		if err := rows.Scan(&h.ID, &h.ContactID, &h.ContextText, &created); err != nil {
			return nil, err
		}
		h.CreatedAt = time.UnixMilli(created)
		out = append(out, h)
	}
	return out, rows.Err()
}
