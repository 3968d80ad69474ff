package service

import (
	"fmt"
	"time"
)

// Email templates follow the wording of the public-facing notices. All
// rendering is done at enqueue time so the outbox row is self-contained.

func renderOtpEmail(firstName, code string, ttl time.Duration) (subject, body string) {
	if firstName == "" {
		firstName = "there"
	}
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	subject = "Your Verification Code - NammaOoru"
	body = fmt.Sprintf(`Hi %s,

Your verification code is: %s

It is valid for %d minutes. Do not share this code with anyone; no one
from NammaOoru will ever ask for it.

Best regards,
NammaOoru Team`, firstName, code, minutes)
	return subject, body
}

func renderWelcomeEmail(firstName string) (subject, body string) {
	if firstName == "" {
		firstName = "there"
	}
	subject = "Welcome to NammaOoru"
	body = fmt.Sprintf(`Hi %s,

Your email address has been verified. You can now submit civic issue
reports and track their progress.

Best regards,
NammaOoru Team`, firstName)
	return subject, body
}

func renderStatusEmail(firstName string, reportID int64, title, oldStatus, newStatus string) (subject, body string) {
	if firstName == "" {
		firstName = "User"
	}
	subject = fmt.Sprintf("Report #%d Status Updated", reportID)
	body = fmt.Sprintf(`Hi %s,

Your reported problem (Report #%d: %s) status has been updated.

Previous Status: %s
New Status: %s

We appreciate your report and our team's commitment to resolving it.

Best regards,
NammaOoru Team`, firstName, reportID, title, oldStatus, newStatus)
	return subject, body
}
