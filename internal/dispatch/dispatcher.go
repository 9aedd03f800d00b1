package dispatch

import (
	"context"
)

// Dispatcher is the boundary to the external services that carry out
// follow-up actions. The nurturing engine only decides when to call these and
// with what payload; delivery itself is someone else's problem.
type Dispatcher interface {
	// SendEmail sends a follow-up email to the lead
	SendEmail(ctx context.Context, to, subject, body string) error

	// CreateTask creates a follow-up task for an agent
	CreateTask(ctx context.Context, leadID int64, title, detail string) error

	// Notify emits an internal notification about the lead
	Notify(ctx context.Context, leadID int64, message string) error
}

// classify maps an HTTP status code to retriability: 5xx and 429 may succeed
// on a later pass, other 4xx will not.
func classify(statusCode int) bool {
	if statusCode >= 500 && statusCode < 600 {
		return true
	}
	if statusCode == 429 {
		return true
	}
	return false
}
