package query

import (
	"strconv"
	"strings"
)

// scanQuoted reads string content beginning at s[start], the byte after an
// opening quote, until the next unescaped double quote. \n, \r, \t, \" and
// \\ unescape to their characters; any other escaped byte passes through
// unchanged. The second return is the index just past the closing quote.
// ok is false when no closing quote exists.
func scanQuoted(s string, start int) (string, int, bool) {
	var b strings.Builder
	i := start
	for i < len(s) {
		c := s[i]
		if c == '\\' {
			if i+1 >= len(s) {
				return "", 0, false
			}
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		if c == '"' {
			return b.String(), i + 1, true
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, false
}

// findQuoted locates the next quoted string at or after s[from] and scans
// it. Returns the unescaped content and the index just past its closing
// quote.
func findQuoted(s string, from int) (string, int, bool) {
	open := strings.IndexByte(s[from:], '"')
	if open < 0 {
		return "", 0, false
	}
	return scanQuoted(s, from+open+1)
}

// firstString returns the first string value following `"key":` anywhere
// in text. The search is positional, not grammatical: the first quoted
// run after the first colon after the key wins, wherever it nests.
func firstString(text, key string) (string, bool) {
	at := strings.Index(text, `"`+key+`"`)
	if at < 0 {
		return "", false
	}
	colon := strings.IndexByte(text[at:], ':')
	if colon < 0 {
		return "", false
	}
	value, _, ok := findQuoted(text, at+colon+1)
	return value, ok
}

// firstArrayString returns the first quoted string inside the bracketed
// value following `"key"` in text.
func firstArrayString(text, key string) (string, bool) {
	at := strings.Index(text, `"`+key+`"`)
	if at < 0 {
		return "", false
	}
	bracket := strings.IndexByte(text[at:], '[')
	if bracket < 0 {
		return "", false
	}
	value, _, ok := findQuoted(text, at+bracket+1)
	return value, ok
}

// stringArray collects up to max quoted strings from the bracketed value
// following `"key"` in text. Both brackets must be present; a string that
// runs past the closing bracket ends the walk.
func stringArray(text, key string, max int) []string {
	at := strings.Index(text, `"`+key+`"`)
	if at < 0 {
		return nil
	}
	open := strings.IndexByte(text[at:], '[')
	if open < 0 {
		return nil
	}
	open += at
	stop := strings.IndexByte(text[open:], ']')
	if stop < 0 {
		return nil
	}
	stop += open

	var out []string
	pos := open + 1
	for len(out) < max {
		value, next, ok := findQuoted(text, pos)
		if !ok || next-1 > stop {
			break
		}
		out = append(out, value)
		pos = next
	}
	return out
}

// firstNumber returns the integer following `"key":` in text, reading an
// optional sign and leading digits the way atoi does. Returns 0 when the
// key is absent or no digits follow.
func firstNumber(text, key string) int {
	at := strings.Index(text, `"`+key+`"`)
	if at < 0 {
		return 0
	}
	colon := strings.IndexByte(text[at:], ':')
	if colon < 0 {
		return 0
	}
	rest := strings.TrimLeft(text[at+colon+1:], " \t\n\r")
	end := 0
	if end < len(rest) && (rest[end] == '-' || rest[end] == '+') {
		end++
	}
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return n
}
