package domain

import "time"

// Method records which flow issued the session's token.
type Method string

const (
	MethodPassword  Method = "password"
	MethodOTP       Method = "otp"
	MethodFederated Method = "federated"
)

// Session is the durable record behind an issued bearer token (stored in
// login_sessions). A token whose session has been deleted is blacklisted even
// while cryptographically valid; expired rows are inert and swept lazily.
type Session struct {
	ID          string
	PrincipalID string
	TenantID    string
	Token       string
	Role        string
	Method      Method
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Live reports whether the session still backs its token at now.
func (s *Session) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
