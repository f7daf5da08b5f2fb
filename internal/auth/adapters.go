package auth

import (
	"context"
	"time"

	"tenant-auth-engine/internal/devotp"
	"tenant-auth-engine/internal/mail"
	"tenant-auth-engine/internal/otp"
)

// PrincipalDirectory adapts the principal store to the OTP engine's
// existence check. Either store counts; the engine never learns which.
type PrincipalDirectory struct {
	Principals PrincipalStore
}

func (d PrincipalDirectory) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	p, err := d.Principals.FindByEmail(ctx, identifier)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// EngineChallenger adapts *otp.Engine to the orchestrator's ChallengeEngine.
type EngineChallenger struct {
	Engine *otp.Engine
}

func (e EngineChallenger) Issue(ctx context.Context, identifier string) (string, string, time.Time, error) {
	c, code, err := e.Engine.Issue(ctx, identifier)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return c.ID, code, c.ExpiresAt, nil
}

func (e EngineChallenger) Verify(ctx context.Context, identifier, submitted string) error {
	return e.Engine.Verify(ctx, identifier, submitted)
}

// MailSink delivers passcodes over SMTP.
type MailSink struct {
	Sender mail.Sender
}

func (m MailSink) Deliver(ctx context.Context, identifier, code string, _ time.Time) error {
	return m.Sender.Send(ctx, mail.OTPMessage(identifier, code))
}

// DevSink stores passcodes in memory for retrieval via the dev endpoint.
// Dev OTP mode only; config refuses to enable it in production.
type DevSink struct {
	Store devotp.Store
}

func (d DevSink) Deliver(ctx context.Context, identifier, code string, expiresAt time.Time) error {
	d.Store.Put(ctx, identifier, code, expiresAt)
	return nil
}
