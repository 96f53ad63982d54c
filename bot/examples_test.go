package bot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestExample1Selection(t *testing.T) {
	sel, ok := example1Selection("2")
	require.True(t, ok)
	assert.Equal(t, "Example 1 Callback 2", sel)

	sel, ok = example1Selection("3+")
	require.True(t, ok)
	assert.Equal(t, "Example 1 Callback 3 (NEW) ✨", sel)

	for _, bad := range []string{"", "+", "x", "12"} {
		_, ok := example1Selection(bad)
		assert.False(t, ok, bad)
	}
}

func TestExample1MessageEmbedsCode(t *testing.T) {
	msg := example1Message("a1B2")
	assert.Contains(t, msg, "<code>a1B2</code>")
	assert.Contains(t, msg, "/example1_callback")
}

func TestExample1KeyboardRefresh(t *testing.T) {
	kb := example1Keyboard(false)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "1", kb.InlineKeyboard[0][0].Data)

	kb = example1Keyboard(true)
	require.Len(t, kb.InlineKeyboard, 2)
	last := kb.InlineKeyboard[1][1]
	assert.Equal(t, "Button 4", last.Text)
	assert.Equal(t, cbExample1, last.Unique)
	assert.Equal(t, "4+", last.Data)
}

func TestExample1Answer(t *testing.T) {
	cases := []struct {
		payload string
		text    string
		alert   bool
	}{
		{"1", "You selected: Example 1 callback 1", false},
		{"3", "You selected: Example 1 callback 3", false},
		{"other", "You selected: Example 1 callback other", true},
		{"1_C", "You selected: Example 1 callback 1 C", false},
		{"2_7", "You selected: Example 1 callback 2 7", false},
		{"3_A", "You selected: Example 1 callback 3", false},
	}
	for _, tc := range cases {
		t.Run(tc.payload, func(t *testing.T) {
			text, alert, ok := example1Answer(tc.payload)
			require.True(t, ok)
			assert.Equal(t, tc.text, text)
			assert.Equal(t, tc.alert, alert)
		})
	}

	_, _, ok := example1Answer("nope")
	assert.False(t, ok)
}

func TestExample1CallbackKeyboardLayout(t *testing.T) {
	rows := example1CallbackKeyboard().InlineKeyboard
	// 4 fixed rows, the A-D row, 8 shrinking number rows and 2 switch rows.
	require.Len(t, rows, 15)
	assert.Equal(t, cbExample1Kind, rows[0][0].Unique)
	assert.Equal(t, cbInlineQuery, rows[2][0].Unique)
	assert.Len(t, rows[4], 4)
	assert.Equal(t, "1_D", rows[4][3].Data)
	assert.Len(t, rows[5], 8)
	assert.Len(t, rows[12], 1)
	assert.Equal(t, "example article", rows[13][0].InlineQuery)
	assert.Equal(t, "example article", rows[14][0].InlineQueryChat)
}

func TestExample2Reply(t *testing.T) {
	reply, ok := example2Reply("Example 2 Option 3")
	require.True(t, ok)
	assert.Equal(t, "✅ You selected: `Example 2 Option 3`", reply)

	_, ok = example2Reply("Example 2 Option 10")
	assert.False(t, ok)
	_, ok = example2Reply("hello")
	assert.False(t, ok)
}

func TestAPIErrorCode(t *testing.T) {
	err := fmt.Errorf("send: %w", &tele.Error{Code: 400, Description: "Bad Request: chat not found"})
	code, ok := apiErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, "chat not found", code)

	_, ok = apiErrorCode(errors.New("plain"))
	assert.False(t, ok)
	_, ok = apiErrorCode(&tele.Error{Code: 400})
	assert.False(t, ok)
}
