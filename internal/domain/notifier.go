package domain

import "context"

// Notifier receives write notifications after persistence has succeeded.
// A failed write must never reach the notifier.
type Notifier interface {
	// QuestionWritten is called exactly once per completed create, update
	// or answer-append for the given question.
	QuestionWritten(ctx context.Context, questionID int)

	// QuestionDeleted is called exactly once per completed delete.
	QuestionDeleted(ctx context.Context, questionID int)
}
