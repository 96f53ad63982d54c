package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/scenebot/core/telegram"
	"github.com/m3rciful/scenebot/core/telegram/callbacks"
)

// CallbackOptions sets the handler for keys nobody registered. The
// registry's own not-found handler takes precedence.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches inline button presses by callback key.
// The query is always answered so the client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		defer func() { _ = callbacks.Answer(c) }()

		key, _ := callbacks.ParseCallbackData(cb)
		s := begin(c, "callback."+key, slog.String("cb_key", key))
		if h, ok := reg.GetCallback(key); ok && h != nil {
			return s.run(h)
		}
		notFound := reg.CallbackNotFound()
		if notFound == nil {
			notFound = opts.NotFound
		}
		return s.as(outcomeFallback).run(notFound)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(handler)}
}
