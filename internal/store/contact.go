package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const contactColumns = `id, phone_number, name, relationship_type, formality_level,
	communication_style, background_context, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(r rowScanner) (*ContactContext, error) {
	var (
		c                                       ContactContext
		name, rel, formality, style, background sql.NullString
		created, updated                        int64
	)
	if err := r.Scan(&c.ID, &c.PhoneNumber, &name, &rel, &formality, &style, &background, &created, &updated); err != nil {
		return nil, err
	}
	c.Name = name.String
	c.RelationshipType = rel.String
	c.Formality = Formality(formality.String)
	c.CommunicationStyle = style.String
	c.BackgroundContext = background.String
	c.CreatedAt = time.UnixMilli(created)
	c.UpdatedAt = time.UnixMilli(updated)
	return &c, nil
}

// GetContactContext returns the saved context for phone, or nil when none
// exists. A missing context is not an error.
func (db *DB) GetContactContext(ctx context.Context, phone string) (*ContactContext, error) {
	return getContact(ctx, db.DB, phone)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getContact(ctx context.Context, q queryer, phone string) (*ContactContext, error) {
	c, err := scanContact(q.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE phone_number = ?`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact %q: %w", phone, err)
	}
	return c, nil
}

// ListContactContexts returns every saved context, most recently updated first.
func (db *DB) ListContactContexts(ctx context.Context) ([]ContactContext, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ContactContext
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SaveContactContext inserts the context for u.PhoneNumber or updates it in
// place. Only the fields set in u change; the rest keep their stored values.
// Supplying background text also appends a context history entry.
func (db *DB) SaveContactContext(ctx context.Context, u ContactContextUpdate) (*ContactContext, error) {
	phone := strings.TrimSpace(u.PhoneNumber)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrInvalid)
	}
	if u.Formality != nil {
		if _, err := ParseFormality(string(*u.Formality)); err != nil {
			return nil, err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	merged := ContactContext{PhoneNumber: phone}
	existing, err := getContact(ctx, tx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		merged = *existing
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&merged.Name, u.Name)
	apply(&merged.RelationshipType, u.RelationshipType)
	apply(&merged.CommunicationStyle, u.CommunicationStyle)
	apply(&merged.BackgroundContext, u.BackgroundContext)
	if u.Formality != nil {
		merged.Formality = *u.Formality
	}

	now := millis(db.now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO contacts (phone_number, name, relationship_type, formality_level, communication_style, background_context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone_number) DO UPDATE SET
			name = excluded.name,
			relationship_type = excluded.relationship_type,
			formality_level = excluded.formality_level,
			communication_style = excluded.communication_style,
			background_context = excluded.background_context,
			updated_at = excluded.updated_at`,
		phone, nullString(merged.Name), nullString(merged.RelationshipType), nullString(string(merged.Formality)),
		nullString(merged.CommunicationStyle), nullString(merged.BackgroundContext), now, now); err != nil {
		return nil, fmt.Errorf("upsert contact %q: %w", phone, err)
	}

	saved, err := getContact(ctx, tx, phone)
	if err != nil {
		return nil, err
	}
	if u.BackgroundContext != nil && saved.BackgroundContext != "" {
		if err := appendHistory(ctx, tx, saved.ID, saved.BackgroundContext, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// UpdateBackground replaces only the background text of an existing context.
// It returns nil when no context has been saved for phone.
func (db *DB) UpdateBackground(ctx context.Context, phone, background string) (*ContactContext, error) {
	existing, err := db.GetContactContext(ctx, phone)
	if err != nil || existing == nil {
		return nil, err
	}
	return db.SaveContactContext(ctx, ContactContextUpdate{
		PhoneNumber:       phone,
		BackgroundContext: &background,
	})
}

// ContactContextCount returns the number of saved contact contexts.
func (db *DB) ContactContextCount(ctx context.Context) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n)
	return n, err
}
