package chatdb

import (
	"errors"
	"fmt"
)

// ErrUnavailable matches any failure to open the message store.
var ErrUnavailable = errors.New("message store unavailable")

// UnavailableError reports that chat.db could not be opened. On macOS this
// is almost always a missing Full Disk Access grant, not corruption.
type UnavailableError struct {
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("cannot open message store at %s: %v (grant Full Disk Access to the terminal or app running replykitd, then retry)", e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }
