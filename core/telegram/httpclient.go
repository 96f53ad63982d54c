package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/telegram/sender"
)

// Transport limits for Bot API calls. getUpdates adds the long-poll window
// on top of the response limits.
const (
	dialTimeout     = 5 * time.Second
	keepAlive       = 30 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 30 * time.Second
	headerTimeout   = 5 * time.Second
	requestTimeout  = 30 * time.Second
	dialRetries     = 2
	dialBackoff     = time.Second
)

// BuildHTTPClient returns the client handed to telebot.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	header, total := headerTimeout, requestTimeout
	if longPoll > 0 {
		header = max(header, longPoll+headerTimeout)
		total = max(total, longPoll+requestTimeout/3)
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: header,
	}
	return &http.Client{
		Timeout:   total,
		Transport: &retryTransport{base: base, retries: dialRetries, backoff: dialBackoff},
	}
}

// retryTransport repeats requests that failed with a transient network
// error. Requests whose body cannot be rewound are sent once.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && sender.Transient(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		logger.Debug(req.Context(), "tg.http", "http.retry",
			slog.String("endpoint", endpointOf(req)),
			slog.Int("attempts", attempt),
			slog.String("err_code", sender.Classify(err)),
		)
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.backoff * time.Duration(attempt)):
		}
		next := req.Clone(req.Context())
		if req.GetBody != nil {
			if next.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

// endpointOf returns the Bot API method, the last path segment, so the
// token never reaches the logs.
func endpointOf(req *http.Request) string {
	p := req.URL.Path
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
