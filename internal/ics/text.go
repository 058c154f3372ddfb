package ics

import (
	"strings"
	"unicode/utf8"
)

// DefaultFoldWidth is the RFC 5545 limit on octets per physical line,
// excluding the CRLF.
const DefaultFoldWidth = 75

var (
	escaper = strings.NewReplacer(
		`\`, `\\`,
		",", `\,`,
		";", `\;`,
		"\r\n", `\n`,
		"\n", `\n`,
	)
	unescaper = strings.NewReplacer(
		`\\`, `\`,
		`\,`, ",",
		`\;`, ";",
		`\n`, "\n",
		`\N`, "\n",
	)
)

// Escape escapes a TEXT property value.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape. CRLF pairs in the original come back as "\n".
func Unescape(s string) string {
	return unescaper.Replace(s)
}

// Fold splits a content line into physical lines of at most width bytes.
// Continuation lines begin with a single space, which counts toward the
// width. Multi-byte UTF-8 sequences are never split.
func Fold(line string, width int) []string {
	if width <= 1 {
		width = DefaultFoldWidth
	}
	var out []string
	for len(line) > width {
		cut := width
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		switch {
		case cut == 0:
			// Not valid UTF-8; fall back to a byte split.
			cut = width
		case cut == 1 && line[0] == ' ':
			// A continuation space followed by a rune wider than the limit.
			_, size := utf8.DecodeRuneInString(line[1:])
			cut = 1 + size
		}
		out = append(out, line[:cut])
		line = " " + line[cut:]
	}
	return append(out, line)
}

// Unfold joins physical lines produced by Fold back into one content line.
func Unfold(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			l = strings.TrimPrefix(l, " ")
		}
		b.WriteString(l)
	}
	return b.String()
}
