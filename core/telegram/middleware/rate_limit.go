package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/metrics"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware. Exclude holds update
// kinds as reported by UpdateKind.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// sweepAt is the table size that triggers dropping expired entries.
const sweepAt = 1024

// limiter remembers when each user was last let through.
type limiter struct {
	interval time.Duration
	mu       sync.Mutex
	seen     map[int64]time.Time
}

func newLimiter(interval time.Duration) *limiter {
	return &limiter{interval: interval, seen: make(map[int64]time.Time)}
}

// allow reports whether user may proceed at now, and otherwise how long
// until they may.
func (l *limiter) allow(user int64, now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.seen[user]; ok {
		if wait := l.interval - now.Sub(last); wait > 0 {
			return wait, false
		}
	}
	if len(l.seen) >= sweepAt {
		for id, last := range l.seen {
			if now.Sub(last) >= l.interval {
				delete(l.seen, id)
			}
		}
	}
	l.seen[user] = now
	return 0, true
}

// RateLimitMiddleware drops updates arriving from the same user faster than
// opts.Interval. OnLimited, when set, may tell the user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := newLimiter(opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			wait, ok := lim.allow(user.ID, time.Now())
			if ok {
				return next(c)
			}
			metrics.IncRateLimited()
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("outcome", "rate_limited"),
				slog.Int64("user_id", user.ID),
				slog.Duration("backoff", wait),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
