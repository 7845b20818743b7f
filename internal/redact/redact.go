// Package redact strips secrets and personal data from strings before they
// reach logs or activation events.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	authHeaderRe  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	bearerRe      = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	apiKeyValueRe = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([A-Za-z0-9._\-+/=]+)`)
	passwordRe    = regexp.MustCompile(`(?i)(password\s*[:=]\s*)(\S+)`)
	tokenishKeyRe = regexp.MustCompile(`(?i)(secret|token)\s*[:=]\s*([A-Za-z0-9._\-+/=]{6,})`)
	hfTokenRe     = regexp.MustCompile(`hf_[A-Za-z0-9]{16,}`)
	urlRe         = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.\-]*://[^\s"'<>]+`)

	emailRe = regexp.MustCompile(`(?i)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-()]{8,}\d`)
	longRe  = regexp.MustCompile(`[A-Za-z0-9_\-]{32,}`)
)

// String redacts known secret patterns from free-form strings.
func String(s string) string {
	if s == "" {
		return s
	}

	out := urlRe.ReplaceAllStringFunc(s, URL)
	out = authHeaderRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = bearerRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyValueRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = passwordRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = hfTokenRe.ReplaceAllString(out, "[REDACTED]")
	out = tokenishKeyRe.ReplaceAllStringFunc(out, func(s string) string {
		if strings.Contains(s, "[REDACTED]") {
			return s
		}
		matches := tokenishKeyRe.FindStringSubmatch(s)
		if len(matches) < 3 {
			return s
		}
		return matches[1] + "=[REDACTED]"
	})
	for strings.Contains(out, "[REDACTED][REDACTED]") {
		out = strings.ReplaceAll(out, "[REDACTED][REDACTED]", "[REDACTED]")
	}
	return out
}

// URL masks the password of a connection URL (postgres://, redis://, https://)
// and drops its query string. Host and path stay readable.
func URL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[REDACTED_URL]"
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.Username())
		if _, ok := u.User.Password(); ok {
			b.WriteString(":[REDACTED]")
		}
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	b.WriteString(u.EscapedPath())
	if u.RawQuery != "" {
		b.WriteString("?[REDACTED_QUERY]")
	}
	return b.String()
}

// Text masks personal data in user-submitted text (emails, phone numbers,
// long opaque tokens) for previews.
func Text(s string) string {
	if s == "" {
		return s
	}
	out := emailRe.ReplaceAllString(s, "[REDACTED_EMAIL]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	out = longRe.ReplaceAllString(out, "[REDACTED_TOKEN]")
	return out
}
