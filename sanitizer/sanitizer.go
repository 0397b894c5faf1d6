// Package sanitizer strips markup from inbound payloads before they are persisted.
package sanitizer

import (
	"strings"

	"golang.org/x/net/html"
)

// Sanitize returns a copy of record in which every string value has its markup removed
// and surrounding whitespace trimmed. Values of any other type are copied as is.
func Sanitize(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		if s, ok := value.(string); ok {
			out[key] = Text(s)
			continue
		}
		out[key] = value
	}
	return out
}

// Text strips tags, comments and doctypes from s, decodes entities and trims whitespace.
// Decoding can reveal new markup ("&lt;b&gt;" becomes "<b>"), so stripping is repeated
// until the output no longer changes. Every pass that changes the text shortens it,
// which bounds the loop.
func Text(s string) string {
	current := strings.ReplaceAll(s, "\x00", "")
	for {
		next := strip(current)
		if next == current || len(next) >= len(current) {
			return next
		}
		current = next
	}
}

func strip(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF, the reader cannot fail otherwise
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
