package state

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/dialogue"
)

// ConversationOf returns the chat/user pair of an update.
// Updates without a chat or a sender (channel posts, polls) have none.
func ConversationOf(c tele.Context) (dialogue.ConversationID, bool) {
	if c == nil {
		return "", false
	}
	chat, user := c.Chat(), c.Sender()
	if chat == nil || user == nil {
		return "", false
	}
	return dialogue.NewConversationID(chat.ID, user.ID), true
}
