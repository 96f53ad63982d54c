package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/scenebot/core/telegram"
)

// Conversations routes free-form input to a running dialogue.
type Conversations interface {
	InProgress(c tele.Context) bool
	HandleText(c tele.Context) error
	// HandleMedia answers documents and photos sent during a dialogue.
	HandleMedia(c tele.Context) error
}

// Fallbacks handles updates that match no command, callback or dialogue.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// TextOptions sets the handlers for text and documents outside a dialogue.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextOptionsFrom takes the text handlers of fb.
func TextOptionsFrom(fb Fallbacks) TextOptions {
	return TextOptions{UnknownText: fb.UnknownText(), UnknownDocument: fb.UnknownDocument()}
}

// TextRoutes routes text, documents and photos. A running dialogue sees
// the input first and takes only text as an answer. Outside a dialogue
// text goes to the command it names, if registered, and finally to
// UnknownText.
func TextRoutes(conv Conversations, reg *tg.Registry, opts TextOptions) []tg.Route {
	inDialogue := func(c tele.Context) bool { return conv != nil && conv.InProgress(c) }

	onText := func(c tele.Context) error {
		if inDialogue(c) {
			return begin(c, "dialogue").run(conv.HandleText)
		}
		if reg != nil {
			if name, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return begin(c, name).run(cmd.Handler)
			}
		}
		return fallback(c, "unknown_text", opts.UnknownText)
	}
	onDocument := func(c tele.Context) error {
		if inDialogue(c) {
			return begin(c, "dialogue_media").as(outcomeFallback).run(conv.HandleMedia)
		}
		return fallback(c, "unexpected_document", opts.UnknownDocument)
	}
	onPhoto := func(c tele.Context) error {
		if inDialogue(c) {
			return begin(c, "dialogue_media").as(outcomeFallback).run(conv.HandleMedia)
		}
		return fallback(c, "unexpected_photo", nil)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText)},
		{Endpoint: tele.OnDocument, Handler: wrap(onDocument)},
		{Endpoint: tele.OnPhoto, Handler: wrap(onPhoto)},
	}
}

func fallback(c tele.Context, name string, h tele.HandlerFunc) error {
	if h == nil {
		return begin(c, name).as(outcomeSkipped).run(nil)
	}
	return begin(c, name).as(outcomeFallback).run(h)
}
