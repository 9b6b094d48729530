// Package render turns assistant reply text into the HTML fragment shown by
// the chat widget.
package render

import (
	"regexp"
	"strings"
)

var (
	boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)
	codePattern = regexp.MustCompile("`(.*?)`")
)

// Format replaces **bold** with <strong>, `code` with <code> and newlines
// with <br />. Unmatched markers are left untouched.
func Format(text string) string {
	out := boldPattern.ReplaceAllString(text, "<strong>$1</strong>")
	out = codePattern.ReplaceAllString(out, "<code>$1</code>")
	return strings.ReplaceAll(out, "\n", "<br />")
}

// Plain strips the markup instead of converting it, for terminals and logs.
func Plain(text string) string {
	out := boldPattern.ReplaceAllString(text, "$1")
	return codePattern.ReplaceAllString(out, "$1")
}
