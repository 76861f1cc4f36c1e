// Package logging builds the process logger and scrubs secrets from values
// before they reach it.
package logging

import (
	"regexp"

	"go.uber.org/zap"
)

// RedactedText replaces sensitive values.
const RedactedText = "[REDACTED]"

type redactor struct {
	pattern     *regexp.Regexp
	replacement string
}

var (
	// key=value credentials in DSNs and driver errors
	passwordRedactor = redactor{regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`), "${1}=" + RedactedText}

	// user:pass@host in URLs
	userinfoRedactor = redactor{regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`), "://" + RedactedText + "@" + RedactedText}

	bearerRedactor = redactor{regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.=]+`), "Bearer " + RedactedText}

	// OpenAI-style secret keys echoed back in provider errors
	secretKeyRedactor = redactor{regexp.MustCompile(`sk-[A-Za-z0-9\-_]{16,}`), RedactedText}

	apiKeyRedactor = redactor{regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[A-Za-z0-9\-_]{16,}`), "${1}=" + RedactedText}
)

func redact(s string, rs ...redactor) string {
	for _, r := range rs {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// SanitizeConnectionString removes credentials from a DSN or database URL.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	return redact(connStr, passwordRedactor, userinfoRedactor)
}

// SanitizeError renders err with credentials, bearer tokens and API keys removed.
// Errors surfaced to API callers go through it as well as logged ones.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return redact(err.Error(), passwordRedactor, userinfoRedactor, bearerRedactor, secretKeyRedactor, apiKeyRedactor)
}

// Error is a zap field carrying the sanitized error text.
func Error(err error) zap.Field {
	return zap.String("error", SanitizeError(err))
}

// TruncateString truncates s to maxLen bytes and adds an ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
