// Package redact strips credentials (model API keys, the Matrix access token)
// from strings before they reach a log line.
//
// Redaction is best-effort and operates on string representations. It is not
// a substitute for keeping secrets out of log call-sites.
package redact

import "strings"

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Mask returns a loggable hint for a secret: empty stays empty, short values
// are fully hidden, longer values keep their last four characters.
func Mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return placeholder
	default:
		return "…" + secret[len(secret)-4:]
	}
}
