package dialogue

import (
	"bytes"
	"encoding/json"
	"html"
	"strings"
)

// CompletionHandler formats the reply sent when a dialogue reaches its terminal step.
// It must not retain or mutate answers.
type CompletionHandler func(steps *Registry, answers map[int]string) Reply

// FormatAnswers renders answers as an indented JSON object whose keys follow step order.
// Steps without an answer are omitted.
func FormatAnswers(steps *Registry, answers map[int]string) string {
	var buf bytes.Buffer
	buf.WriteString("{")
	first := true
	for _, st := range steps.steps {
		v, ok := answers[st.Index]
		if !ok {
			continue
		}
		if !first {
			buf.WriteString(",")
		}
		first = false
		buf.WriteString("\n  ")
		buf.WriteString(quote(st.Key))
		buf.WriteString(": ")
		buf.WriteString(quote(v))
	}
	if !first {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String()
}

// JSONSummary returns a CompletionHandler producing an HTML message with the
// answers as a JSON code block under a spoilered title.
func JSONSummary(title string) CompletionHandler {
	return func(steps *Registry, answers map[int]string) Reply {
		body := html.EscapeString(FormatAnswers(steps, answers))
		text := "<tg-spoiler>🎉 " + html.EscapeString(title) + "</tg-spoiler>\n\n" +
			"Here’s a summary of your responses:\n" +
			`<pre><code class="json">` + body + "</code></pre>"
		return Reply{Text: text, Format: FormatHTML}
	}
}

// quote encodes s as a JSON string without escaping HTML characters.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
