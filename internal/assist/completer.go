package assist

import "context"

// Request is one prompt for a generative backend.
type Request struct {
	System string
	User   string
	// Temperature is left to the backend default when nil.
	Temperature *float64
	// JSON asks the backend to answer with a single JSON value.
	JSON bool
}

// Completer is a text-completion backend. Implementations should bound
// each call with their own timeout.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
