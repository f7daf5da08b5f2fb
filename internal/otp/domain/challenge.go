package domain

import "time"

// Challenge is a one-time passcode issued for an identifier (stored in
// otp_challenges). Only the hash of the code is persisted. A challenge is
// "live" while unused and unexpired; marking it used is a one-way transition.
type Challenge struct {
	ID         string
	Identifier string
	CodeHash   string
	ExpiresAt  time.Time
	Used       bool
	CreatedAt  time.Time
}

// Live reports whether the challenge can still satisfy a verification at now.
func (c *Challenge) Live(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt)
}
