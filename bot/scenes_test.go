package bot

import (
	"context"
	"html"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/dialogue/dialoguetest"
	"github.com/m3rciful/scenebot/core/storage/memory"
	"github.com/m3rciful/scenebot/core/telegram/state"
)

var conv = dialogue.NewConversationID(100, 7)

func newScenes(t *testing.T) (map[string]state.Scene, *dialoguetest.Recorder) {
	t.Helper()
	out := &dialoguetest.Recorder{}
	scenes, err := NewScenes(memory.New(), out, SceneSettings{BackDelay: time.Millisecond})
	require.NoError(t, err)
	byName := make(map[string]state.Scene, len(scenes))
	for _, sc := range scenes {
		byName[sc.Name()] = sc
	}
	return byName, out
}

func lastText(t *testing.T, out *dialoguetest.Recorder) string {
	t.Helper()
	r, ok := out.Last()
	require.True(t, ok)
	return r.Text
}

func TestScenesAreBoundToCommands(t *testing.T) {
	scenes, _ := newScenes(t)
	require.Len(t, scenes, 2)
	assert.Equal(t, "/example3", scenes[SceneName].Command)
	assert.Equal(t, "/example4", scenes[WizardName].Command)
	assert.Equal(t, 5, scenes[SceneName].Machine.Steps().Len())
	assert.Equal(t, 5, scenes[WizardName].Machine.Steps().Len())
}

func TestSceneFormRunsToSummary(t *testing.T) {
	scenes, out := newScenes(t)
	m := scenes[SceneName].Machine
	ctx := context.Background()

	_, err := m.Enter(ctx, conv)
	require.NoError(t, err)
	first, ok := out.Last()
	require.True(t, ok)
	assert.Contains(t, first.Text, "Base Scene Example 1")
	assert.Contains(t, first.Text, "✅ Yes / ❌ No")
	assert.Equal(t, dialogue.FormatHTML, first.Format)
	require.NotNil(t, first.Keyboard)
	assert.Equal(t, [][]string{{"✅ Yes", "❌ No"}}, first.Keyboard.Rows)

	res, err := m.Submit(ctx, conv, "maybe")
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeRejected, res.Outcome)
	assert.Equal(t, "Please answer with ✅ Yes or ❌ No\n\n✅ Yes / ❌ No", lastText(t, out))

	_, err = m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)
	name, _ := out.Last()
	assert.Equal(t, "📍 Step 1: What’s your name?", name.Text)
	require.NotNil(t, name.Keyboard)
	assert.True(t, name.Keyboard.Remove)

	for _, answer := range []string{"Ada", "Engineer", "Chess"} {
		_, err = m.Submit(ctx, conv, answer)
		require.NoError(t, err)
	}
	res, err = m.Submit(ctx, conv, "Lovely <3")
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeCompleted, res.Outcome)

	summary := lastText(t, out)
	assert.Contains(t, summary, "You’ve successfully completed the form!")
	assert.Contains(t, summary, "&#34;step1Answer&#34;: &#34;Ada&#34;")
	assert.Contains(t, summary, "Lovely &lt;3")

	active, err := m.Active(ctx, conv)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestWizardRejectionRepeatsBarePrompt(t *testing.T) {
	scenes, out := newScenes(t)
	m := scenes[WizardName].Machine
	ctx := context.Background()

	_, err := m.Enter(ctx, conv)
	require.NoError(t, err)
	_, err = m.Submit(ctx, conv, "perhaps")
	require.NoError(t, err)
	assert.Equal(t, "Please reply with your answer: '✅ Yes' or '❌ No'.", lastText(t, out))

	_, err = m.Submit(ctx, conv, "❌ No")
	require.NoError(t, err)
	_, err = m.Submit(ctx, conv, "   ")
	require.NoError(t, err)
	assert.Equal(t, "Please respond with text.\n\n📍 <b>Step 1:</b> What’s your name?", lastText(t, out))
}

func TestWizardBackAtBeginningNoticeExpires(t *testing.T) {
	scenes, out := newScenes(t)
	m := scenes[WizardName].Machine
	ctx := context.Background()

	_, err := m.Enter(ctx, conv)
	require.NoError(t, err)
	out.Reset()

	res, err := m.Back(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeAtBeginning, res.Outcome)

	sent := out.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, dialogue.DefaultMessages.AtBeginning, sent[0].Reply.Text)
	assert.Equal(t, 2*time.Second, sent[0].Reply.ExpireAfter)
	assert.Equal(t, "Please reply with your answer: '✅ Yes' or '❌ No'.", sent[1].Reply.Text)
}

func TestWizardCompletesWithOwnTitle(t *testing.T) {
	scenes, out := newScenes(t)
	m := scenes[WizardName].Machine
	ctx := context.Background()

	_, err := m.Enter(ctx, conv)
	require.NoError(t, err)
	for _, answer := range []string{"✅ Yes", "Grace", "Admiral", "COBOL", "none"} {
		_, err = m.Submit(ctx, conv, answer)
		require.NoError(t, err)
	}
	assert.Contains(t, lastText(t, out), "You’ve successfully completed Wizard Example 1!")
}

func TestWizardCancelText(t *testing.T) {
	scenes, out := newScenes(t)
	m := scenes[WizardName].Machine
	ctx := context.Background()

	_, err := m.Enter(ctx, conv)
	require.NoError(t, err)
	res, err := m.Cancel(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeCanceled, res.Outcome)
	assert.Equal(t, "❌ Wizard canceled. You can restart anytime using /example4.", lastText(t, out))
}

func TestWizardEnterSendsIntroWithKeyboard(t *testing.T) {
	scenes, out := newScenes(t)
	m := scenes[WizardName].Machine

	res, err := m.Enter(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeEntered, res.Outcome)

	sent := out.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, wizardIntro, sent[0].Reply.Text)
	assert.NotContains(t, sent[0].Reply.Text, "Please reply with your answer")
	assert.Equal(t, dialogue.FormatHTML, sent[0].Reply.Format)
	require.NotNil(t, sent[0].Reply.Keyboard)
	assert.Equal(t, [][]string{{"✅ Yes", "❌ No"}}, sent[0].Reply.Keyboard.Rows)
}

func TestOverlongAnswerIsRejected(t *testing.T) {
	for _, name := range []string{SceneName, WizardName} {
		t.Run(name, func(t *testing.T) {
			scenes, out := newScenes(t)
			m := scenes[name].Machine
			ctx := context.Background()

			_, err := m.Enter(ctx, conv)
			require.NoError(t, err)
			_, err = m.Submit(ctx, conv, "✅ Yes")
			require.NoError(t, err)
			prompt := lastText(t, out)

			res, err := m.Submit(ctx, conv, strings.Repeat("é", maxAnswerLen+1))
			require.NoError(t, err)
			assert.Equal(t, dialogue.OutcomeRejected, res.Outcome)
			assert.Equal(t, tooLong+"\n\n"+prompt, lastText(t, out))

			sess, err := m.Session(ctx, conv)
			require.NoError(t, err)
			assert.Equal(t, 1, sess.CurrentStep)

			res, err = m.Submit(ctx, conv, strings.Repeat("é", maxAnswerLen))
			require.NoError(t, err)
			assert.Equal(t, dialogue.OutcomeAdvanced, res.Outcome)
		})
	}
}

var markup = regexp.MustCompile(`<[^>]+>`)

func TestLongestSummaryFitsOneMessage(t *testing.T) {
	for _, name := range []string{SceneName, WizardName} {
		t.Run(name, func(t *testing.T) {
			scenes, out := newScenes(t)
			m := scenes[name].Machine
			ctx := context.Background()

			_, err := m.Enter(ctx, conv)
			require.NoError(t, err)
			_, err = m.Submit(ctx, conv, "✅ Yes")
			require.NoError(t, err)
			// quotes double in length once JSON-escaped
			answer := strings.Repeat(`"`, maxAnswerLen)
			var res dialogue.Result
			for range 4 {
				res, err = m.Submit(ctx, conv, answer)
				require.NoError(t, err)
			}
			require.Equal(t, dialogue.OutcomeCompleted, res.Outcome)

			visible := html.UnescapeString(markup.ReplaceAllString(lastText(t, out), ""))
			assert.LessOrEqual(t, utf8.RuneCountInString(visible), 4096)
		})
	}
}
