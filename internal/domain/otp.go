package domain

import "time"

// OtpChallenge is a one-time code issued against an email address. A
// challenge may precede the user record (UserID nil) when verification is
// part of registration. At most one unused, unexpired challenge is live per
// email: issuing a new one invalidates the rest.
type OtpChallenge struct {
	ID        int64
	Email     string
	CodeHash  string // bcrypt; the clear code is never stored
	UserID    *int64
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

func (c *OtpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *OtpChallenge) Used() bool {
	return c.UsedAt != nil
}

// UserLink is the identity a successful verification resolves to. UserID is
// nil for a pre-registration challenge.
type UserLink struct {
	Email  string
	UserID *int64
}

const OtpCodeLength = 6
