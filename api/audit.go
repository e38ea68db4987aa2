package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditEnrolled             AuditEvent = "enrolled"
	AuditEnrollFailed         AuditEvent = "enroll_failed"
	AuditSecretStored         AuditEvent = "secret_stored"
	AuditSecretStoreFailed    AuditEvent = "secret_store_failed"
	AuditSecretRetrieved      AuditEvent = "secret_retrieved"
	AuditSecretRetrieveFailed AuditEvent = "secret_retrieve_failed"
	AuditSecretTested         AuditEvent = "secret_tested"
	AuditSecretTestFailed     AuditEvent = "secret_test_failed"
	AuditRevoked              AuditEvent = "revoked"
	AuditRevokeFailed         AuditEvent = "revoke_failed"
	AuditSessionLocked        AuditEvent = "session_locked"
	AuditAllSessionsLocked    AuditEvent = "all_sessions_locked"
)

// auditLogger wraps slog.Logger for structured security audit logging. Only
// provider names and event metadata are logged; secret values never reach
// the log.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event_id", uuid.NewString()),
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, provider string, extra ...slog.Attr) {
	attrs := make([]slog.Attr, 0, len(extra)+1)
	if provider != "" {
		attrs = append(attrs, slog.String("provider", provider))
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed operation with its error. Credential errors carry
// their classified kind in the message.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, provider string, err error) {
	al.logEvent(event, r, provider, slog.String("error", err.Error()))
}
