package domain

import "context"

// Prompt is a single language model request.
type Prompt struct {
	System string
	User   string
}

// Completer sends a prompt to a language model and returns its free-form text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}
