package notification

import "context"

// Email is a plain-text message to one recipient
type Email struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers transactional email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, email Email) error
}
