package pipeline

import (
	"strings"
)

const fence = "```"

var smartQuotes = strings.NewReplacer("“", "", "”", "", "‘", "", "’", "")

// Sanitize strips the wrapping artifacts models put around structured output.
// It never fails; text it cannot clean is left for Parse to reject.
//
// The rules only ever delete characters, so the loop terminates, and its
// fixpoint makes Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	for {
		next := sanitizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizeOnce(text string) string {
	text = stripFences(text)
	text = smartQuotes.Replace(text)
	text = stripEscapes(text)
	return strings.TrimSpace(text)
}

// stripFences removes one opening fence (with an optional language tag) and
// one closing fence surrounding the text.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, fence) {
		text = strings.TrimSpace(strings.TrimSuffix(text, fence))
	}
	if strings.HasPrefix(text, fence) {
		text = strings.TrimPrefix(text, fence)
		text = text[languageTagLen(text):]
	}
	return text
}

// languageTagLen measures a tag such as "json" directly after an opening
// fence. A tag must be followed by whitespace, the end of the text or the
// start of a JSON value.
func languageTagLen(s string) int {
	n := 0
	for n < len(s) && isTagByte(s[n]) {
		n++
	}
	if n == 0 || n == len(s) {
		return n
	}
	switch s[n] {
	case ' ', '\t', '\r', '\n', '{', '[':
		return n
	}
	return 0
}

func isTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '+' || c == '_'
}

// stripEscapes drops literal "\n" pairs and any backslash that does not open
// a valid JSON escape. Valid escapes are copied through untouched.
func stripEscapes(text string) string {
	if !strings.Contains(text, `\`) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(text) {
			break
		}
		switch next := text[i+1]; next {
		case 'n':
			i++
		case '"', '\\', '/', 'b', 'f', 'r', 't':
			b.WriteByte(c)
			b.WriteByte(next)
			i++
		case 'u':
			if i+5 < len(text) && isHex4(text[i+2:i+6]) {
				b.WriteString(text[i : i+6])
				i += 5
			}
		}
	}
	return b.String()
}

func isHex4(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return len(s) == 4
}
