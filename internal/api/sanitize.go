package api

import "strings"

// suspiciousPatterns are the well-known boolean-tautology injection
// fragments removed ahead of parsing when SQL_INJECTON_PROTECT is on.
// Each pattern maps to the text that replaces it. The bare " or ..."
// patterns leave a clean statement; a quoted pattern followed by the
// statement's own closing quote leaves that quote doubled.
var suspiciousPatterns = []struct {
	pattern     string
	replacement string
}{
	{"' or '1'='1", "'"},
	{`" or "1"="1"`, `"`},
	{"' or 1=1", "'"},
	{`" or 1=1`, `"`},
	{" or 1=1", " "},
	{" or '1'='1", " "},
	{` or "1"="1`, " "},
}

// SanitizeSQL strips the known tautology patterns from sql,
// case-insensitively. Returns the (possibly rewritten) statement and
// whether anything was removed.
func SanitizeSQL(sql string) (string, bool) {
	sanitized := sql
	modified := false
	for _, p := range suspiciousPatterns {
		updated, changed := replaceCaseInsensitive(sanitized, p.pattern, p.replacement)
		if changed {
			sanitized = updated
			modified = true
		}
	}
	return sanitized, modified
}

// replaceCaseInsensitive replaces every case-insensitive occurrence of
// pattern in input with replacement, preserving the untouched parts of
// the original string byte-for-byte.
func replaceCaseInsensitive(input, pattern, replacement string) (string, bool) {
	if pattern == "" {
		return input, false
	}

	inputLower := strings.ToLower(input)
	patternLower := strings.ToLower(pattern)
	if !strings.Contains(inputLower, patternLower) {
		return input, false
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for {
		idx := strings.Index(inputLower[last:], patternLower)
		if idx < 0 {
			break
		}
		idx += last
		b.WriteString(input[last:idx])
		b.WriteString(replacement)
		last = idx + len(pattern)
	}
	b.WriteString(input[last:])
	return b.String(), true
}
