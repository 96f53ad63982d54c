package state

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/storage"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
)

// Serialize runs updates of one conversation one at a time.
// Updates without a conversation pass straight through.
func Serialize(guard *storage.Guard) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			id, ok := ConversationOf(c)
			if !ok || guard == nil {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			entered := false
			err := guard.Do(ctx, string(id), func(context.Context) error {
				entered = true
				return next(c)
			}, func(err error) {
				logger.Warn(ctx, "store", "lock.release",
					slog.String("status", "fail"),
					slog.String("conversation", string(id)),
					slog.String("err", err.Error()),
				)
			})
			if err != nil && !entered {
				logger.Warn(ctx, "store", "lock.acquire",
					slog.String("status", "fail"),
					slog.String("conversation", string(id)),
					slog.String("err", err.Error()),
				)
			}
			return err
		}
	}
}
