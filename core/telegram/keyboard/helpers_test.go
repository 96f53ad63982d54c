package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scenebot/core/dialogue"
)

func TestFromDialogueNil(t *testing.T) {
	assert.Nil(t, FromDialogue(nil))
}

func TestFromDialogueRemove(t *testing.T) {
	markup := FromDialogue(dialogue.RemoveKeyboard())
	require.NotNil(t, markup)
	assert.True(t, markup.RemoveKeyboard)
	assert.Empty(t, markup.ReplyKeyboard)
}

func TestFromDialogueRows(t *testing.T) {
	markup := FromDialogue(&dialogue.Keyboard{
		Rows:        [][]string{{"✅ Yes", "❌ No"}},
		Resize:      true,
		OneTime:     true,
		Placeholder: "pick one",
	})
	require.NotNil(t, markup)
	require.Len(t, markup.ReplyKeyboard, 1)
	require.Len(t, markup.ReplyKeyboard[0], 2)
	assert.Equal(t, "✅ Yes", markup.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "❌ No", markup.ReplyKeyboard[0][1].Text)
	assert.True(t, markup.ResizeKeyboard)
	assert.True(t, markup.OneTimeKeyboard)
	assert.Equal(t, "pick one", markup.Placeholder)
}

func TestInlineButtonsNPerRow(t *testing.T) {
	buttons := make([]InlineBtn, 0, 5)
	for _, label := range []string{"A", "B", "C", "D", "E"} {
		buttons = append(buttons, InlineBtn{Text: label, Unique: "pick", Data: label})
	}
	markup := InlineButtonsNPerRow(buttons, 2)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Len(t, markup.InlineKeyboard[2], 1)
	last := markup.InlineKeyboard[2][0]
	assert.Equal(t, "pick", last.Unique)
	assert.Equal(t, "E", last.Data)
}

func TestInlineURLButton(t *testing.T) {
	markup := InlineButtonsRows([]InlineBtn{{Text: "Add me to your chat", URL: "https://t.me/bot?startgroup=true"}})
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "https://t.me/bot?startgroup=true", markup.InlineKeyboard[0][0].URL)
	assert.Empty(t, markup.InlineKeyboard[0][0].Data)
}
