package mailer

import "context"

// Mailer is the outbound mail transport. It is treated as untrusted and
// failure-prone: every implementation bounds its network time with the
// caller's context, and callers decide what a failure means (the dispatcher
// retries, nothing else ever calls it directly).
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) error
}
