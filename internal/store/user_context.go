package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const userContextColumns = `id, context_type, content, start_at, end_at, created_at`

// AddUserContext stores a new entry and returns it with its ID.
func (db *DB) AddUserContext(ctx context.Context, in NewUserContext) (*UserContextEntry, error) {
	typ := strings.TrimSpace(in.Type)
	content := strings.TrimSpace(in.Content)
	if typ == "" || content == "" {
		return nil, fmt.Errorf("%w: type and content are required", ErrInvalid)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO user_context (context_type, content, start_at, end_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		typ, content, nullMillis(in.StartAt), nullMillis(in.EndAt), millis(db.now()))
	if err != nil {
		return nil, fmt.Errorf("insert user context: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return scanUserContext(db.QueryRowContext(ctx,
		`SELECT `+userContextColumns+` FROM user_context WHERE id = ?`, id))
}

// ActiveUserContext returns the entries whose end bound is absent or not yet
// passed, newest first. The rule lives in the query so every reader sees
// the same definition of active.
func (db *DB) ActiveUserContext(ctx context.Context) ([]UserContextEntry, error) {
	return db.listUserContext(ctx,
		`SELECT `+userContextColumns+` FROM user_context
		WHERE end_at IS NULL OR end_at >= ?
		ORDER BY created_at DESC, id DESC`, millis(db.now()))
}

// AllUserContext returns every entry, expired ones included, newest first.
func (db *DB) AllUserContext(ctx context.Context) ([]UserContextEntry, error) {
	return db.listUserContext(ctx,
		`SELECT `+userContextColumns+` FROM user_context ORDER BY created_at DESC, id DESC`)
}

// DeleteUserContext removes an entry. Deleting a missing ID is not an error.
func (db *DB) DeleteUserContext(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM user_context WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user context %d: %w", id, err)
	}
	return nil
}

func (db *DB) listUserContext(ctx context.Context, query string, args ...any) ([]UserContextEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []UserContextEntry
	for rows.Next() {
		e, err := scanUserContext(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanUserContext(r rowScanner) (*UserContextEntry, error) {
	var (
		e          UserContextEntry
		start, end sql.NullInt64
		created    int64
	)
	if err := r.Scan(&e.ID, &e.Type, &e.Content, &start, &end, &created); err != nil {
		return nil, err
	}
	e.StartAt = timePtr(start)
	e.EndAt = timePtr(end)
	e.CreatedAt = time.UnixMilli(created)
	return &e, nil
}
