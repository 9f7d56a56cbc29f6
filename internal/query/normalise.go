// Package query turns the loosely shaped payloads clients send to
// POST /search into a single engine-ready query string. Payloads arrive
// in several forms, often produced by language models: a plain query
// field, a queries array, JSON embedded inside the query string itself,
// or reasoning wrapped in think tags.
package query

import (
	"regexp"
	"strings"

	"github.com/localkb/lkb/internal/textutil"
)

// thinkTags matches a well-formed reasoning span. Unterminated opening
// tags are deliberately not matched and stay in the text.
var thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Normalise selects and cleans the effective query for a request. The
// selection order is fixed:
//
//  1. a non-empty queries[0] wins, trimmed
//  2. an empty query yields an empty result (the caller skips the engine)
//  3. think tag spans are removed and the remainder trimmed
//  4. text containing '{' and "queries" has the first array string pulled
//     out of it
//  5. text starting with '[' yields its first quoted string
//  6. text starting with '"' yields the quoted content
//  7. bare text without JSON punctuation keeps only its first token
//
// Every path is capped at maxLen bytes on a code point boundary.
func Normalise(req SearchRequest, maxLen int) string {
	if len(req.Queries) > 0 && req.Queries[0] != "" {
		return textutil.TruncateUTF8(strings.TrimSpace(req.Queries[0]), maxLen)
	}

	if req.Query == "" {
		return ""
	}

	cleaned := strings.TrimSpace(thinkTags.ReplaceAllString(req.Query, ""))
	if cleaned == "" {
		return ""
	}

	if strings.ContainsRune(cleaned, '{') && strings.Contains(cleaned, "queries") {
		if nested, ok := firstArrayString(cleaned, "queries"); ok && nested != "" {
			return textutil.TruncateUTF8(nested, maxLen)
		}
	}

	if cleaned[0] == '[' {
		if value, _, ok := findQuoted(cleaned, 0); ok {
			return textutil.TruncateUTF8(value, maxLen)
		}
	}

	if cleaned[0] == '"' {
		if value, _, ok := scanQuoted(cleaned, 1); ok {
			return textutil.TruncateUTF8(value, maxLen)
		}
	}

	if !strings.ContainsAny(cleaned, "{[:") {
		if space := strings.IndexByte(cleaned, ' '); space >= 0 {
			cleaned = cleaned[:space]
		}
	}

	return textutil.TruncateUTF8(cleaned, maxLen)
}
