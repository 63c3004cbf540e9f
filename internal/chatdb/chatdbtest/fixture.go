// Package chatdbtest builds throwaway Messages databases for tests.
package chatdbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE handle (ROWID INTEGER PRIMARY KEY AUTOINCREMENT, id TEXT NOT NULL, service TEXT);
CREATE TABLE chat (ROWID INTEGER PRIMARY KEY AUTOINCREMENT, chat_identifier TEXT, display_name TEXT);
CREATE TABLE chat_handle_join (chat_id INTEGER, handle_id INTEGER);
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT,
	attributedBody BLOB,
	is_from_me INTEGER DEFAULT 0,
	is_read INTEGER DEFAULT 0,
	date INTEGER,
	handle_id INTEGER DEFAULT 0
);
CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER);
`

// Fixture is a writable chat.db under a test temp dir.
type Fixture struct {
	Path    string
	t       testing.TB
	db      *sql.DB
	handles map[string]int64
}

// Msg describes one message row.
type Msg struct {
	Text   string
	Body   []byte
	FromMe bool
	Read   bool
	Date   int64
}

// New creates an empty database with the Messages tables the adapter reads.
func New(t testing.TB) *Fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	return &Fixture{Path: path, t: t, db: db, handles: map[string]int64{}}
}

// Chat creates a chat with the given members and returns its ROWID.
func (f *Fixture) Chat(displayName string, members ...string) int64 {
	f.t.Helper()
	res, err := f.db.Exec(`INSERT INTO chat (chat_identifier, display_name) VALUES (?, ?)`, firstOr(members), displayName)
	if err != nil {
		f.t.Fatal(err)
	}
	chatID, _ := res.LastInsertId()
	for _, m := range members {
		if _, err := f.db.Exec(`INSERT INTO chat_handle_join (chat_id, handle_id) VALUES (?, ?)`, chatID, f.handle(m)); err != nil {
			f.t.Fatal(err)
		}
	}
	return chatID
}

// Message adds a message to a chat and returns its ROWID.
func (f *Fixture) Message(chatID int64, m Msg) int64 {
	f.t.Helper()
	var text any
	if m.Text != "" {
		text = m.Text
	}
	res, err := f.db.Exec(`INSERT INTO message (text, attributedBody, is_from_me, is_read, date) VALUES (?, ?, ?, ?, ?)`,
		text, m.Body, m.FromMe, m.Read, m.Date)
	if err != nil {
		f.t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	if _, err := f.db.Exec(`INSERT INTO chat_message_join (chat_id, message_id) VALUES (?, ?)`, chatID, id); err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *Fixture) handle(id string) int64 {
	if rowid, ok := f.handles[id]; ok {
		return rowid
	}
	res, err := f.db.Exec(`INSERT INTO handle (id, service) VALUES (?, 'iMessage')`, id)
	if err != nil {
		f.t.Fatal(err)
	}
	rowid, _ := res.LastInsertId()
	f.handles[id] = rowid
	return rowid
}

func firstOr(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
