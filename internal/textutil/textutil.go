// Package textutil provides byte-level text helpers shared by the query
// normaliser, the response reshaper and debug logging.
package textutil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// flattener maps the control characters that break single-line JSON log
// consumers to a single space each.
var flattener = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// FlattenWhitespace replaces each newline, carriage return and tab in s
// with a single space. Other characters pass through unchanged.
func FlattenWhitespace(s string) string {
	return flattener.Replace(s)
}

// TruncateUTF8 shortens s to at most max bytes without splitting a
// multi-byte code point. The result may be up to three bytes shorter than
// max when the cut would land inside a rune.
func TruncateUTF8(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// TruncateWithEllipsis truncates s to the given byte budget on a code
// point boundary and appends "..." when anything was removed.
func TruncateWithEllipsis(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	return TruncateUTF8(s, budget) + "..."
}

// WikiEncode converts a page title into the path form MediaWiki expects:
// ASCII letters, digits and - _ . ~ are kept, spaces become underscores
// and every other byte is percent-encoded with uppercase hex.
func WikiEncode(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for i := 0; i < len(title); i++ {
		c := title[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '_' || c == '.' || c == '~':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('_')
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
