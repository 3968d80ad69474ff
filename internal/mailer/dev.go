package mailer

import (
	"context"

	"github.com/nammaooru/civic-reports/pkg/logger"
)

// DevMailer logs messages instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) error {
	logger.InfoContext(ctx, "[DEV MAIL] outbound email",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"body", text,
	)
	return nil
}
