// Package chatdb reads the macOS Messages database. It never writes: the
// connection is opened read-only with query_only set.
package chatdb

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/matheus3301/replykit/internal/logging"
	"github.com/matheus3301/replykit/internal/paths"
	"github.com/matheus3301/replykit/internal/richtext"
)

const (
	defaultThreadLimit = 100
	defaultSearchLimit = 20
)

// Names resolves counterparty identifiers to contact-book names.
type Names interface {
	Load(ctx context.Context) error
	Lookup(id string) (string, bool)
}

// Store is the message store adapter. The database is opened on first
// use, so a missing permission surfaces where it can be acted on.
type Store struct {
	path  string
	names Names
	log   *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// New returns an adapter for the database at path. names may be nil.
func New(path string, names Names, log *zap.Logger) *Store {
	return &Store{path: path, names: names, log: logging.OrNop(log)}
}

func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("sqlite3", paths.SQLiteURI(s.path, "mode=ro&_query_only=true"))
	if err != nil {
		return nil, &UnavailableError{Path: s.path, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &UnavailableError{Path: s.path, Err: err}
	}
	s.log.Info("message store opened", zap.String("path", s.path))
	s.db = db
	return db, nil
}

// Close releases the connection if one was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ListContacts returns every distinct counterparty with the thread-level
// display name the store holds for it.
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	return s.contacts(ctx, "", 0)
}

// SearchContacts matches query as a case-insensitive substring of the
// identifier or display name. limit <= 0 means 20.
func (s *Store) SearchContacts(ctx context.Context, query string, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.contacts(ctx, query, limit)
}

// FindContact returns the counterparty with exactly this identifier, or nil.
func (s *Store) FindContact(ctx context.Context, identifier string) (*Contact, error) {
	all, err := s.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.Identifier == identifier {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) contacts(ctx context.Context, query string, limit int) ([]Contact, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT MIN(h.ROWID), h.id, MAX(NULLIF(c.display_name, ''))
		FROM handle h
		JOIN chat_handle_join chj ON chj.handle_id = h.ROWID
		LEFT JOIN chat c ON c.ROWID = chj.chat_id`
	var args []any
	if query != "" {
		q += ` WHERE h.id LIKE ? ESCAPE '\' OR c.display_name LIKE ? ESCAPE '\'`
		pattern := "%" + escapeLike(query) + "%"
		args = append(args, pattern, pattern)
	}
	q += ` GROUP BY h.id ORDER BY 3, h.id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Contact
	for rows.Next() {
		var (
			c    Contact
			name sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Identifier, &name); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.DisplayName = name.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Previews pick the newest message per identifier. A counterparty that is
// also in a group chat can get a group message as its preview.
const previewsQuery = `
	WITH ranked AS (
		SELECT h.id AS handle, m.text, m.attributedBody, m.is_from_me, m.is_read, m.date,
		       NULLIF(c.display_name, '') AS chat_name,
		       ROW_NUMBER() OVER (PARTITION BY h.id ORDER BY m.date DESC, m.ROWID DESC) AS rn
		FROM message m
		JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
		JOIN chat c ON c.ROWID = cmj.chat_id
		JOIN chat_handle_join chj ON chj.chat_id = cmj.chat_id
		JOIN handle h ON h.ROWID = chj.handle_id
	)
	SELECT handle, text, attributedBody, is_from_me, is_read, date, chat_name
	FROM ranked
	WHERE rn = 1
	ORDER BY date DESC, handle`

// ListThreadPreviews returns one preview per counterparty, newest first.
// Contact-book names take priority over the store's own thread names.
func (s *Store) ListThreadPreviews(ctx context.Context) ([]ThreadPreview, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if s.names != nil {
		if err := s.names.Load(ctx); err != nil {
			return nil, fmt.Errorf("load contact names: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, previewsQuery)
	if err != nil {
		return nil, fmt.Errorf("query thread previews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ThreadPreview
	for rows.Next() {
		var (
			p        ThreadPreview
			text     sql.NullString
			body     []byte
			isRead   bool
			chatName sql.NullString
		)
		if err := rows.Scan(&p.Identifier, &text, &body, &p.IsFromMe, &isRead, &p.LastMessageAt, &chatName); err != nil {
			return nil, fmt.Errorf("scan thread preview: %w", err)
		}
		p.LastMessage = resolveText(text, body)
		p.Unread = !p.IsFromMe && !isRead
		p.DisplayName = s.displayName(p.Identifier, chatName.String)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) displayName(identifier, chatName string) string {
	if s.names != nil {
		if name, ok := s.names.Lookup(identifier); ok {
			return name
		}
	}
	if chatName != "" {
		return chatName
	}
	return identifier
}

const threadColumns = `
	SELECT m.ROWID, m.text, m.attributedBody, m.is_from_me, m.date, h.id
	FROM message m
	JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	JOIN chat_handle_join chj ON chj.chat_id = cmj.chat_id
	JOIN handle h ON h.ROWID = chj.handle_id`

// GetThread returns up to limit of the newest messages exchanged with
// identifier, oldest first. limit <= 0 means 100. Messages without a text
// column go through rich-text recovery.
func (s *Store) GetThread(ctx context.Context, identifier string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultThreadLimit
	}
	msgs, err := s.messages(ctx, threadColumns+`
		WHERE h.id = ?
		ORDER BY m.date DESC, m.ROWID DESC
		LIMIT ?`, true, identifier, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// GetFullHistory returns every message with a non-empty text column,
// oldest first. Rich-text payloads are not recovered here, so messages
// that only carry one are left out.
func (s *Store) GetFullHistory(ctx context.Context, identifier string) ([]Message, error) {
	return s.messages(ctx, threadColumns+`
		WHERE h.id = ? AND m.text IS NOT NULL AND m.text != ''
		ORDER BY m.date ASC, m.ROWID ASC`, false, identifier)
}

func (s *Store) messages(ctx context.Context, query string, withRecovery bool, args ...any) ([]Message, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			text sql.NullString
			body []byte
		)
		if err := rows.Scan(&m.ID, &text, &body, &m.IsFromMe, &m.Date, &m.Identifier); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if !withRecovery {
			body = nil
		}
		m.Text = resolveText(text, body)
		out = append(out, m)
	}
	return out, rows.Err()
}

func resolveText(text sql.NullString, body []byte) *string {
	if text.Valid && text.String != "" {
		return &text.String
	}
	if len(body) == 0 {
		return nil
	}
	if recovered, ok := richtext.Recover(body); ok {
		return &recovered
	}
	return nil
}
