// Package mail delivers transactional mail (OTP codes) over SMTP.
package mail

import (
	"context"
	"fmt"
)

// Message is one outbound mail with both plain-text and HTML bodies.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message. Delivery failure leaves any related OTP
// challenge issued-but-undelivered; it expires unused.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

// OTPMessage builds the login-verification mail for a passcode.
func OTPMessage(to, code string) *Message {
	return &Message{
		To:      to,
		Subject: "Your Login Verification Code",
		Text:    fmt.Sprintf("Your verification code is: %s. This code will expire in 10 minutes.", code),
		HTML: fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Your Verification Code</h2>
  <p>Your verification code is:</p>
  <div style="background-color: #f4f4f4; padding: 10px; text-align: center; font-size: 24px; letter-spacing: 5px; margin: 20px 0;">
    <strong>%s</strong>
  </div>
  <p>This code will expire in 10 minutes.</p>
  <p>If you didn't request this code, please ignore this email.</p>
</div>`, code),
	}
}
