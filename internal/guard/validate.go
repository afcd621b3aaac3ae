package guard

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const (
	minQueryLen = 3
	maxQueryLen = 1000
)

// dangerousPatterns block script/code injection attempts before a query can
// reach any prompt or shell boundary.
var dangerousPatterns = compileAll([]string{
	`<script[^>]*>.*?</script>`,
	`javascript:`,
	`on\w+\s*=`,
	`eval\s*\(`,
	`exec\s*\(`,
	`import\s+`,
	`__\w+__`,
	`\.\./`,
	"[;&|`$]",
})

var sqlInjectionPatterns = compileAll([]string{
	`union\s+select`,
	`drop\s+table`,
	`delete\s+from`,
	`insert\s+into`,
	`update\s+set`,
	`--\s*$`,
	`/\*.*?\*/`,
})

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// ValidateQuery checks user query text for security issues. It returns false
// with a client-facing reason when the query must be rejected.
func ValidateQuery(query string) (bool, string) {
	if query == "" {
		return false, "query must be a non-empty string"
	}
	if len(query) > maxQueryLen {
		return false, "query too long (max 1000 characters)"
	}
	if len(strings.TrimSpace(query)) < minQueryLen {
		return false, "query too short (min 3 characters)"
	}

	lower := strings.ToLower(query)
	for _, p := range dangerousPatterns {
		if p.MatchString(lower) {
			return false, "query contains potentially dangerous content"
		}
	}
	for _, p := range sqlInjectionPatterns {
		if p.MatchString(lower) {
			return false, "query contains potentially malicious SQL"
		}
	}

	special := 0
	for _, r := range query {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if special > len(query)*3/10 {
		return false, "query contains too many special characters"
	}
	return true, ""
}

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

func strictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeQuery strips and escapes dangerous content. Applied after
// validation for defense in depth.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	query = strings.ReplaceAll(query, "\x00", "")
	query = strings.Join(strings.Fields(query), " ")
	query = strictHTMLPolicy().Sanitize(query)
	query = strings.ReplaceAll(query, `\`, `\\`)
	query = strings.ReplaceAll(query, `"`, `\"`)
	query = strings.ReplaceAll(query, `'`, `\'`)
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}
	return strings.TrimSpace(query)
}

// ValidateSessionID accepts 8-128 chars of [A-Za-z0-9_-].
func ValidateSessionID(sessionID string) bool {
	if len(sessionID) < 8 || len(sessionID) > 128 {
		return false
	}
	return sessionIDPattern.MatchString(sessionID)
}

// SanitizeSessionID strips invalid characters and caps the length; empty
// results fall back to "default".
func SanitizeSessionID(sessionID string) string {
	var b strings.Builder
	for _, r := range sessionID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 128 {
		out = out[:128]
	}
	if out == "" {
		return "default"
	}
	return out
}
