package api

import (
	"time"

	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/store"
)

// Empty is the request of methods without parameters.
type Empty struct{}

type SearchContactsRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type ContactsResponse struct {
	Contacts []chatdb.Contact `json:"contacts"`
}

// Thread is a preview joined with the saved context for its counterparty.
type Thread struct {
	chatdb.ThreadPreview
	Context *store.ContactContext `json:"context_data"`
}

type ThreadsResponse struct {
	Threads []Thread `json:"threads"`
}

type ContactRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type ThreadRequest struct {
	PhoneNumber string `json:"phone_number"`
	Limit       int    `json:"limit,omitempty"`
}

type MessagesResponse struct {
	Messages []chatdb.Message `json:"messages"`
}

type ContactWithContextResponse struct {
	Contact *chatdb.Contact       `json:"contact"`
	Context *store.ContactContext `json:"context"`
}

type ContactContextsResponse struct {
	Contexts []store.ContactContext `json:"contexts"`
}

// ContactContextResponse carries nil when nothing was saved.
type ContactContextResponse struct {
	Context *store.ContactContext `json:"context"`
}

type UpdateBackgroundRequest struct {
	PhoneNumber       string `json:"phone_number"`
	BackgroundContext string `json:"background_context"`
}

type ContextHistoryRequest struct {
	PhoneNumber string `json:"phone_number"`
	Limit       int    `json:"limit,omitempty"`
}

type ContextHistoryResponse struct {
	History []store.HistoryEntry `json:"history"`
}

type UserContextResponse struct {
	Entries []store.UserContextEntry `json:"entries"`
}

type UserContextEntryResponse struct {
	Entry *store.UserContextEntry `json:"entry"`
}

type DeleteUserContextRequest struct {
	ID int64 `json:"id"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type SuggestForThreadRequest struct {
	PhoneNumber       string `json:"phone_number"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

type DirectoryStatusResponse struct {
	State   string `json:"state"`
	Entries int    `json:"entries"`
}

// WatchRequest selects events by kind prefix. Empty means all.
type WatchRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

type EventMessage struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}
