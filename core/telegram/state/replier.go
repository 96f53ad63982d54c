package state

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/metrics"
	"github.com/m3rciful/scenebot/core/telegram/keyboard"
	"github.com/m3rciful/scenebot/core/telegram/sender"
)

// API is the part of *tele.Bot used to deliver replies.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Replier delivers dialogue replies to Telegram chats.
type Replier struct {
	api        API
	dispatcher *sender.Dispatcher
	afterFunc  func(d time.Duration, f func())
}

// ReplierOption configures a Replier.
type ReplierOption func(*Replier)

// WithDispatcher sends through the async dispatcher, keyed by chat so the
// replies of one conversation keep their order. A closed dispatcher falls
// back to a direct call.
func WithDispatcher(d *sender.Dispatcher) ReplierOption {
	return func(r *Replier) { r.dispatcher = d }
}

// NewReplier wraps api, normally the running *tele.Bot.
func NewReplier(api API, opts ...ReplierOption) *Replier {
	r := &Replier{
		api: api,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ dialogue.Replier = (*Replier)(nil)

// Reply sends r to the chat of id.
func (r *Replier) Reply(ctx context.Context, id dialogue.ConversationID, reply dialogue.Reply) error {
	chatID, err := id.Chat()
	if err != nil {
		return err
	}
	run := func() error { return r.send(ctx, chatID, reply) }
	if r.dispatcher == nil {
		return run()
	}
	err = r.dispatcher.Submit(ctx, sender.Job{
		Key:      strconv.FormatInt(chatID, 10),
		Action:   "dialogue.reply",
		Endpoint: "sendMessage",
		Run:      run,
	})
	if errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback", slog.String("action", "dialogue.reply"))
		return run()
	}
	return err
}

func (r *Replier) send(ctx context.Context, chatID int64, reply dialogue.Reply) error {
	opts := &tele.SendOptions{ParseMode: parseMode(reply.Format)}
	if markup := keyboard.FromDialogue(reply.Keyboard); markup != nil {
		opts.ReplyMarkup = markup
	}
	msg, err := r.api.Send(tele.ChatID(chatID), reply.Text, opts)
	if err != nil {
		if r.dispatcher == nil {
			metrics.IncSend("fail")
		}
		return err
	}
	if r.dispatcher == nil {
		metrics.IncSend("ok")
	}
	if reply.ExpireAfter > 0 && msg != nil {
		bg := context.WithoutCancel(ctx)
		r.afterFunc(reply.ExpireAfter, func() {
			if err := r.api.Delete(msg); err != nil {
				logger.Warn(bg, "tg", "message.expire",
					slog.String("status", "fail"),
					slog.Int64("chat_id", chatID),
					slog.String("err", err.Error()),
				)
			}
		})
	}
	return nil
}

func parseMode(f dialogue.Format) tele.ParseMode {
	switch f {
	case dialogue.FormatHTML:
		return tele.ModeHTML
	case dialogue.FormatMarkdown:
		return tele.ModeMarkdown
	default:
		return tele.ModeDefault
	}
}
