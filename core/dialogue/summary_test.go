package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAnswersFollowsStepOrder(t *testing.T) {
	r := MustRegistry(
		Step{Prompt: Prompt{Text: "a"}},
		Step{Prompt: Prompt{Text: "b"}},
		Step{Key: "feedback", Prompt: Prompt{Text: "c"}},
	)
	got := FormatAnswers(r, map[int]string{2: "<3 & thanks", 0: "✅ Yes"})
	want := "{\n  \"step0Answer\": \"✅ Yes\",\n  \"feedback\": \"<3 & thanks\"\n}"
	assert.Equal(t, want, got)

	assert.Equal(t, "{}", FormatAnswers(r, nil))
}

func TestJSONSummaryEscapesHTML(t *testing.T) {
	r := MustRegistry(Step{Prompt: Prompt{Text: "a"}})
	reply := JSONSummary("Done!")(r, map[int]string{0: "<b>x</b>"})

	assert.Equal(t, FormatHTML, reply.Format)
	want := "<tg-spoiler>🎉 Done!</tg-spoiler>\n\n" +
		"Here’s a summary of your responses:\n" +
		"<pre><code class=\"json\">{\n  &#34;step0Answer&#34;: &#34;&lt;b&gt;x&lt;/b&gt;&#34;\n}</code></pre>"
	assert.Equal(t, want, reply.Text)
}
