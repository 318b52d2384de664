package result

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var fenceLine = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_+-]*[ \t]*$")

// stripFences removes markdown code-fence lines, including language hints.
func stripFences(s string) string {
	return strings.TrimSpace(fenceLine.ReplaceAllString(s, ""))
}

// sliceStructure cuts s down to the span from the first '[' or '{' to the
// last matching closer. It returns "" when there is no opener.
func sliceStructure(s string) string {
	i := strings.IndexAny(s, "[{")
	if i < 0 {
		return ""
	}
	closer := byte('}')
	if s[i] == '[' {
		closer = ']'
	}
	j := strings.LastIndexByte(s, closer)
	if j < i {
		return s[i:]
	}
	return s[i : j+1]
}

// looksStructured reports whether a string value is itself an encoded
// list or mapping.
func looksStructured(s string) bool {
	t := stripFences(s)
	return strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{")
}

var smartQuotes = runes.Map(func(r rune) rune {
	switch r {
	case '“', '”', '„', '‟', '″', '«', '»':
		return '"'
	case '‘', '’', '‚', '‛', '′':
		return '\''
	}
	return r
})

// normalizeQuotes replaces typographic quotes with ASCII quotes.
func normalizeQuotes(s string) string {
	out, _, err := transform.String(smartQuotes, s)
	if err != nil {
		return s
	}
	return out
}

// removeTrailingCommas drops commas that directly precede a closing bracket
// or brace, ignoring anything inside string literals.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case ',':
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// nullLiterals are spellings producers use for "no value".
var nullLiterals = map[string]bool{
	"none":      true,
	"null":      true,
	"nil":       true,
	"undefined": true,
	"n/a":       true,
}

func isNullLiteral(s string) bool {
	return nullLiterals[strings.ToLower(strings.TrimSpace(s))]
}
