package bus

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds published inside the daemon. Subscribers filter by prefix,
// so "context." receives both saved contexts and history appends.
const (
	KindContextSaved           = "context.saved"
	KindUserContextAdded       = "usercontext.added"
	KindUserContextDeleted     = "usercontext.deleted"
	KindDirectoryStatusChanged = "directory.status_changed"
	KindDirectoryLoaded        = "directory.loaded"
	KindSuggestionsGenerated   = "suggest.generated"
	KindStyleAnalyzed          = "suggest.style_analyzed"
)

// Event is a single bus message.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(kind string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
