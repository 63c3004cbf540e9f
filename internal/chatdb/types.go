package chatdb

import "time"

// Contact is a distinct counterparty as the message store knows it.
type Contact struct {
	ID          int64  `json:"id"`
	Identifier  string `json:"phone_number"`
	DisplayName string `json:"display_name,omitempty"`
}

// ThreadPreview is the latest message exchanged with one counterparty.
type ThreadPreview struct {
	Identifier    string  `json:"phone_number"`
	DisplayName   string  `json:"display_name"`
	LastMessage   *string `json:"last_message"`
	LastMessageAt int64   `json:"last_message_at,string"`
	IsFromMe      bool    `json:"is_from_me"`
	Unread        bool    `json:"unread"`
}

// Time returns LastMessageAt as wall-clock time.
func (p ThreadPreview) Time() time.Time { return Time(p.LastMessageAt) }

// Message is one row of a thread. Text is nil when neither the text
// column nor the rich-text payload yielded anything readable.
type Message struct {
	ID         int64   `json:"id"`
	Text       *string `json:"text"`
	IsFromMe   bool    `json:"is_from_me"`
	Date       int64   `json:"date,string"`
	Identifier string  `json:"contact"`
}

// Time returns Date as wall-clock time.
func (m Message) Time() time.Time { return Time(m.Date) }

// Body returns the text or "".
func (m Message) Body() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}
