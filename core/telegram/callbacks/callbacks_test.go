package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		cb           *tele.Callback
		key, payload string
	}{
		{nil, "", ""},
		{&tele.Callback{Unique: "ex1", Data: "3"}, "ex1", "3"},
		{&tele.Callback{Data: "\fex1|2+"}, "ex1", "2+"},
		{&tele.Callback{Data: "menu"}, "menu", ""},
		{&tele.Callback{Data: " menu |a|b"}, "menu", "a|b"},
	}
	for _, tc := range cases {
		key, payload := ParseCallbackData(tc.cb)
		assert.Equal(t, tc.key, key)
		assert.Equal(t, tc.payload, payload)
	}
}
