package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestValidate(t *testing.T) {
	ok := Command{Handler: func(tele.Context) error { return nil }, Description: "Go back"}
	require.NoError(t, Validate("/back", ok))
	require.NoError(t, Validate("/example1_callback", ok))

	for _, name := range []string{"", "back", "/Back", "/with space", "/" + strings.Repeat("a", 33)} {
		assert.ErrorIs(t, Validate(name, ok), ErrInvalidName, name)
	}
	assert.ErrorIs(t, Validate("/back", Command{Description: "Go back"}), ErrIncomplete)
	assert.ErrorIs(t, Validate("/back", Command{Handler: ok.Handler, Description: "  "}), ErrIncomplete)
}

func TestParse(t *testing.T) {
	cases := map[string]string{
		"/help":                 "/help",
		"  /Help@scene_bot now": "/help",
		"/example3 extra args":  "/example3",
	}
	for in, want := range cases {
		got, ok := Parse(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"help", "", "/", "/@bot", "/bad-name"} {
		_, ok := Parse(in)
		assert.False(t, ok, in)
	}
}
