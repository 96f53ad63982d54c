package helpers

import (
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// sendAsync runs the call on the dispatcher lane of the current chat, or
// directly when no dispatcher is running.
func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	var key string
	if chat := c.Chat(); chat != nil {
		key = strconv.FormatInt(chat.ID, 10)
	}
	ctx := BuildContext(c)
	err := disp.Submit(ctx, sender.Job{Key: key, Action: action, Endpoint: endpoint, Run: run})
	if errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback", slog.String("action", action))
		return run()
	}
	return err
}

// SendText sends text without a parse mode to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var o *tele.SendOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if o == nil {
			return c.Send(text)
		}
		return c.Send(text, o)
	})
}

// SendMDV2 sends MarkdownV2 text with an optional keyboard.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return SendText(c, text, formatted(tele.ModeMarkdownV2, markup))
}

// SendHTML sends HTML text with an optional keyboard.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return SendText(c, text, formatted(tele.ModeHTML, markup))
}

// EditOrSendHTML edits the callback message in place, sending a new one
// when there is nothing to edit.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.EditOrSend(text, formatted(tele.ModeHTML, markup))
}

func formatted(mode tele.ParseMode, markup []*tele.ReplyMarkup) *tele.SendOptions {
	o := &tele.SendOptions{ParseMode: mode}
	if len(markup) > 0 {
		o.ReplyMarkup = markup[0]
	}
	return o
}
