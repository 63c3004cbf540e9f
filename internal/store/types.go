package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid marks input the store refuses to write.
var ErrInvalid = errors.New("invalid context input")

// Formality is the register a contact is addressed in.
type Formality string

const (
	Casual  Formality = "casual"
	Neutral Formality = "neutral"
	Formal  Formality = "formal"
)

// ParseFormality validates s. The empty string is accepted as "unset".
func ParseFormality(s string) (Formality, error) {
	switch f := Formality(s); f {
	case "", Casual, Neutral, Formal:
		return f, nil
	default:
		return "", fmt.Errorf("%w: formality %q, want casual, neutral or formal", ErrInvalid, s)
	}
}

// ContactContext is the user-authored metadata kept for one counterparty.
// Empty strings mean the field was never set.
type ContactContext struct {
	ID                 int64     `json:"id"`
	PhoneNumber        string    `json:"phone_number"`
	Name               string    `json:"name,omitempty"`
	RelationshipType   string    `json:"relationship_type,omitempty"`
	Formality          Formality `json:"formality,omitempty"`
	CommunicationStyle string    `json:"communication_style,omitempty"`
	BackgroundContext  string    `json:"background_context,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ContactContextUpdate carries the fields a caller wants to change. Nil
// fields keep whatever is stored; a pointer to "" clears the field.
type ContactContextUpdate struct {
	PhoneNumber        string     `json:"phone_number"`
	Name               *string    `json:"name,omitempty"`
	RelationshipType   *string    `json:"relationship_type,omitempty"`
	Formality          *Formality `json:"formality,omitempty"`
	CommunicationStyle *string    `json:"communication_style,omitempty"`
	BackgroundContext  *string    `json:"background_context,omitempty"`
}

// UserContextEntry is a transient fact about the local user. It is active
// until EndAt passes; expired rows stay in storage.
type UserContextEntry struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Content   string     `json:"content"`
	StartAt   *time.Time `json:"start_at,omitempty"`
	EndAt     *time.Time `json:"end_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewUserContext is the input for AddUserContext.
type NewUserContext struct {
	Type    string     `json:"type"`
	Content string     `json:"content"`
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`
}

// HistoryEntry is one append-only record of background text saved for a contact.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	ContactID   int64     `json:"contact_id"`
	ContextText string    `json:"context_text"`
	CreatedAt   time.Time `json:"created_at"`
}
