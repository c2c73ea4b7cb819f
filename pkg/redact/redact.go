// Package redact masks credentials and PII before they reach logs or trace files.
package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

var (
	emailRe  = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe  = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)
	bearerRe = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)
	apiKeyRe = regexp.MustCompile(`(?i)\b(api[_-]?key)(["']?\s*[:=]\s*["']?)[^\s"'&,}]+`)
	skKeyRe  = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
)

// SetEnabled toggles redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text redacts credentials, emails and phone numbers when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := bearerRe.ReplaceAllString(in, "Bearer [REDACTED_TOKEN]")
	out = apiKeyRe.ReplaceAllString(out, "${1}${2}[REDACTED_KEY]")
	out = skKeyRe.ReplaceAllString(out, "[REDACTED_KEY]")
	out = emailRe.ReplaceAllString(out, "[REDACTED_EMAIL]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out
}

// Secret masks a credential regardless of the global switch, keeping the
// last four characters of long values.
func Secret(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case len(value) <= 8:
		return "****"
	default:
		return "****" + value[len(value)-4:]
	}
}
