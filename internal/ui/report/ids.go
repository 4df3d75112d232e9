package report

import (
	"strings"
	"unicode"
)

func sanitizeID(module string) string {
	var b strings.Builder
	for _, r := range module {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if out == "" {
		return "m"
	}
	if unicode.IsDigit(rune(out[0])) {
		return "m_" + out
	}
	return out
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
