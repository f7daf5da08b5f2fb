package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Auth event types emitted by the orchestrator.
const (
	EventLoginSuccess    = "auth.login.success"
	EventLoginFailure    = "auth.login.failure"
	EventLockout         = "auth.login.lockout"
	EventLogout          = "auth.logout"
	EventOTPIssued       = "auth.otp.issued"
	EventOTPConsumed     = "auth.otp.consumed"
	EventTenantProvision = "auth.tenant.provisioned"
)

// Event is one auth-flow occurrence recorded for telemetry. Identifier is the
// presented email; PrincipalID and TenantID are set once known.
type Event struct {
	Type        string
	Identifier  string
	PrincipalID string
	TenantID    string
	Method      string
	Detail      string
}

// EventEmitter records auth events. Implementations must be best-effort and
// non-blocking for the auth flows.
type EventEmitter interface {
	Emit(ctx context.Context, e Event)
}

// NewEventEmitter returns an EventEmitter that writes events as OTel log
// records via the given LoggerProvider. If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) EventEmitter {
	if provider == nil {
		return NoopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("tenant-auth.events")}
}

// NoopEmitter drops every event. Used in tests and when telemetry is disabled.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, Event) {}

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event Event) {
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue(event.Type))
	rec.AddAttributes(otellog.String("event_type", event.Type))
	if event.Identifier != "" {
		rec.AddAttributes(otellog.String("identifier", event.Identifier))
	}
	if event.PrincipalID != "" {
		rec.AddAttributes(otellog.String("principal_id", event.PrincipalID))
	}
	if event.TenantID != "" {
		rec.AddAttributes(otellog.String("tenant_id", event.TenantID))
	}
	if event.Method != "" {
		rec.AddAttributes(otellog.String("method", event.Method))
	}
	if event.Detail != "" {
		rec.AddAttributes(otellog.String("detail", event.Detail))
	}
	e.logger.Emit(ctx, rec)
}
