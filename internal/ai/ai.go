package ai

import "context"

// Completer is the language-model backend contract consumed by the document
// parser. Implementations may be slow and may return malformed output; the
// parser owns validation and retries.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
