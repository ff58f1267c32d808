
package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// ProviderAuthEvent represents a provider-authentication event for audit
// logging: the xtream-style catalog provider logging in with account
// credentials, or the messaging-platform provider establishing a session.
type ProviderAuthEvent struct {
	// Event is the type of event (e.g., "login_success", "session_created", "session_revoked").
	Event string
	// Provider identifies which provider the event concerns ("provider_a", "provider_b").
	Provider string
	// AccountID is the provider account identifier (if known), sanitized before logging.
	AccountID string
	// SessionID is the session/auth-handle identifier (sanitized).
	SessionID string
	// RemoteHost is the provider endpoint host involved in the attempt.
	RemoteHost string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
	// Details contains additional sanitized details.
	Details map[string]string
}

// SecurityLogger provides secure logging for provider-authentication events.
// It automatically sanitizes sensitive data before logging.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a new security logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "auth").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// LogEvent logs a provider-authentication event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *ProviderAuthEvent) {
	e := l.logger.Info().
		Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}

	if event.AccountID != "" {
		e = e.Str("account_id", SanitizeUserID(event.AccountID))
	}

	if event.SessionID != "" {
		e = e.Str("session_id", SanitizeSessionID(event.SessionID))
	}

	if event.Provider != "" {
		e = e.Str("provider", event.Provider)
	}

	if event.RemoteHost != "" {
		e = e.Str("remote_host", event.RemoteHost)
	}

	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}

	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// Debug logs a debug-level message.
func (l *SecurityLogger) Debug(msg string, fields ...interface{}) {
	e := l.logger.Debug()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Info logs an info-level message.
func (l *SecurityLogger) Info(msg string, fields ...interface{}) {
	e := l.logger.Info()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Warn logs a warning-level message.
func (l *SecurityLogger) Warn(msg string, fields ...interface{}) {
	e := l.logger.Warn()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Error logs an error-level message.
func (l *SecurityLogger) Error(msg string, fields ...interface{}) {
	e := l.logger.Error()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// addFieldPairs adds key-value pairs to a zerolog event.
func addFieldPairs(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, ok := fields[i].(string)
			if !ok {
				continue
			}
			e = e.Interface(key, fields[i+1])
		}
	}
	return e
}

// ============================================================
// Pre-defined Provider-Authentication Events
// ============================================================

// LogProviderAuthSuccess logs a successful provider authentication attempt.
func (l *SecurityLogger) LogProviderAuthSuccess(provider, accountID, remoteHost string) {
	l.LogEvent(&ProviderAuthEvent{
		Event:      "login_success",
		Provider:   provider,
		AccountID:  accountID,
		RemoteHost: remoteHost,
		Success:    true,
	})
}

// LogProviderAuthFailure logs a failed provider authentication attempt.
func (l *SecurityLogger) LogProviderAuthFailure(provider, accountID, remoteHost, reason string) {
	l.LogEvent(&ProviderAuthEvent{
		Event:      "login_failed",
		Provider:   provider,
		AccountID:  accountID,
		RemoteHost: remoteHost,
		Success:    false,
		Error:      reason,
	})
}

// LogSessionCreated logs establishment of a provider session (e.g. the
// messaging-platform provider's long-lived session handle).
func (l *SecurityLogger) LogSessionCreated(provider, sessionID, remoteHost string) {
	l.LogEvent(&ProviderAuthEvent{
		Event:      "session_created",
		Provider:   provider,
		SessionID:  sessionID,
		RemoteHost: remoteHost,
		Success:    true,
	})
}

// LogSessionRevoked logs invalidation of a provider session, such as after a
// kill-switch transition or manual credential rotation.
func (l *SecurityLogger) LogSessionRevoked(provider, sessionID, revokedBy string) {
	l.LogEvent(&ProviderAuthEvent{
		Event:     "session_revoked",
		Provider:  provider,
		SessionID: sessionID,
		Success:   true,
		Details: map[string]string{
			"revoked_by": revokedBy,
		},
	})
}

// LogCredentialRotated logs rotation of an encrypted credential handle.
func (l *SecurityLogger) LogCredentialRotated(provider, accountID string) {
	l.LogEvent(&ProviderAuthEvent{
		Event:     "credential_rotated",
		Provider:  provider,
		AccountID: accountID,
		Success:   true,
	})
}

// LogRateLimitTriggered logs when a provider's outbound rate limiter blocked a request.
func (l *SecurityLogger) LogRateLimitTriggered(provider string, waitMs int64) {
	l.Warn("provider rate limit triggered",
		"provider", provider,
		"wait_ms", waitMs,
	)
}

// LogCircuitBreakerOpened logs when a provider's circuit breaker trips open.
func (l *SecurityLogger) LogCircuitBreakerOpened(provider string, consecutiveFailures int) {
	l.Warn("provider circuit breaker opened",
		"provider", provider,
		"consecutive_failures", consecutiveFailures,
	)
}

// ============================================================
// Sanitization Functions
// ============================================================

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeSessionID masks a session ID.
// Example: "abc123def456789" -> "abc1...6789"
func SanitizeSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if len(sessionID) <= 12 {
		return "***"
	}
	return sessionID[:4] + "..." + sessionID[len(sessionID)-4:]
}

// SanitizeUserID masks an account identifier for privacy.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeUsername masks a username, keeping first 2 characters.
// Example: "johndoe" -> "jo***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeEmail masks an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]

	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"token",
		"key",
		"bearer",
		"authorization",
		"cookie",
		"session",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}

	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := map[string]bool{
		"access_token":  true,
		"refresh_token": true,
		"id_token":      true,
		"token":         true,
		"password":      true,
		"secret":        true,
		"api_key":       true,
		"apikey":        true,
		"api_hash":      true,
		"authorization": true,
		"bearer":        true,
		"cookie":        true,
		"session":       true,
		"session_id":    true,
		"sessionid":     true,
	}

	if sensitiveKeys[lowerKey] {
		return SanitizeToken(value)
	}

	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}

	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
