package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramUpdatesTotal,
		telegramHandlerErrorsTotal,
		telegramRateLimitedTotal,
		telegramSendsTotal,
	)
}

var (
	telegramUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_updates_total",
			Help:      "Telegram updates received by type (message/callback/other).",
		},
		[]string{"type"},
	)

	telegramHandlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_handler_errors_total",
			Help:      "Handler failures by error code.",
		},
		[]string{"code"},
	)

	telegramRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter.",
		},
	)

	telegramSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_sends_total",
			Help:      "Outbound messages by status (ok/fail/retry).",
		},
		[]string{"status"},
	)
)

// IncUpdate counts an incoming update.
func IncUpdate(kind string) {
	telegramUpdatesTotal.WithLabelValues(norm(kind)).Inc()
}

// IncHandlerError counts a handler failure.
func IncHandlerError(code string) {
	if code == "" {
		code = "unknown"
	}
	telegramHandlerErrorsTotal.WithLabelValues(norm(code)).Inc()
}

// IncRateLimited counts a dropped update.
func IncRateLimited() {
	telegramRateLimitedTotal.Inc()
}

// IncSend counts an outbound message attempt.
func IncSend(status string) {
	telegramSendsTotal.WithLabelValues(norm(status)).Inc()
}
