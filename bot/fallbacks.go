package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
	"github.com/m3rciful/scenebot/core/telegram/router"
)

const (
	unsupportedAction   = "Unsupported action"
	documentsOnlyInForm = "I don't process documents. Send /start to see what I can do."
)

type fallbacks struct{}

var _ router.Fallbacks = fallbacks{}

// UnknownText answers /example2 choices and ignores any other free text.
func (fallbacks) UnknownText() tele.HandlerFunc {
	return onExample2Option
}

func (fallbacks) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, documentsOnlyInForm)
	}
}

func (fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return callbacks.Answer(c, &tele.CallbackResponse{Text: unsupportedAction})
	}
}
