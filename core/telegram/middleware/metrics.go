package middleware

import (
	"github.com/m3rciful/scenebot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

const statsKey = "reply_stats"

// replyStats records what handlers sent back while serving one update.
type replyStats struct {
	messages int
	keyboard bool
}

func statsOf(c tele.Context) *replyStats {
	s, _ := c.Get(statsKey).(*replyStats)
	return s
}

// countingContext counts successful sends made through tele.Context.
// Dialogue replies bypass it and are counted by the replier.
type countingContext struct {
	tele.Context
	stats *replyStats
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		metrics.IncSend("fail")
		return err
	}
	metrics.IncSend("ok")
	c.stats.messages++
	if hasKeyboard(opts) {
		c.stats.keyboard = true
	}
	return nil
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// MessageMetricsMiddleware counts the update by kind and wraps the context
// so the handler summary can report how many messages were sent. Applying
// it twice to the same update is a no-op.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if statsOf(c) != nil {
			return next(c)
		}
		metrics.IncUpdate(UpdateKind(c.Update()))
		stats := &replyStats{}
		c.Set(statsKey, stats)
		return next(countingContext{Context: c, stats: stats})
	}
}

// GetCounters returns the number of messages sent for the update and
// whether any of them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	if s := statsOf(c); s != nil {
		return s.messages, s.keyboard
	}
	return 0, false
}

// UpdateKind classifies an update for metrics and rate-limit excludes.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	default:
		return "other"
	}
}
