// Package format renders user text as code spans for Telegram parse modes.
package format

import (
	"html"
	"strings"
)

// Inside MarkdownV2 code entities only backtick and backslash are special.
var mdV2Code = strings.NewReplacer(`\`, `\\`, "`", "\\`")

// CodeMDV2 renders text as a MarkdownV2 inline code span.
func CodeMDV2(text string) string {
	return "`" + mdV2Code.Replace(text) + "`"
}

// Code renders text as an HTML <code> element.
func Code(text string) string {
	return "<code>" + html.EscapeString(text) + "</code>"
}
