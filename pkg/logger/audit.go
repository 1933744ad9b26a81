package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types emitted by the login pipeline.
const (
	EventLoginSuccess      = "login_success"
	EventLoginFailed       = "login_failed"
	EventAccountLocked     = "account_locked"
	EventTwoFactorRequired = "two_factor_required"
	EventTwoFactorSuccess  = "two_factor_success"
	EventTwoFactorFailed   = "two_factor_failed"
	EventChallengeExpired  = "challenge_expired"
	EventTwoFactorEnabled  = "two_factor_enabled"
	EventTwoFactorDisabled = "two_factor_disabled"
	EventRegistered        = "credential_registered"
)

// AuditEvent captures one security-relevant action for the audit trail.
// Emails never appear here; callers pass the masked form.
type AuditEvent struct {
	EventType     string
	CredentialID  string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// AuditLogger writes structured security audit records
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// Log emits the event at info for successes and warn for failures, so alert
// rules can key on level alone.
func (al *AuditLogger) Log(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.CredentialID != "" {
		attrs = append(attrs, slog.String("credential_id", event.CredentialID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
