// Package push hands room events to an external push relay. Delivery is
// best-effort: a failure is logged and never retried inline, the caller's
// request must not depend on it.
package push

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"roadnik/internal/metrics"
)

// Sender publishes a message to a topic. Returns whether the relay accepted it.
type Sender interface {
	SendPush(ctx context.Context, topic, message string) bool
}

// HTTPSender posts to an ntfy-style relay: POST {base}/{topic} with the
// message as the body.
type HTTPSender struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

func NewHTTPSender(baseURL string, log zerolog.Logger) *HTTPSender {
	return &HTTPSender{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
		log:  log.With().Str("component", "push").Logger(),
	}
}

func (s *HTTPSender) SendPush(ctx context.Context, topic, message string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/"+topic, strings.NewReader(message))
	if err != nil {
		metrics.PushSends.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("topic", topic).Msg("push request build failed")
		return false
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := s.http.Do(req)
	if err != nil {
		metrics.PushSends.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Str("topic", topic).Msg("push delivery failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.PushSends.WithLabelValues("rejected").Inc()
		s.log.Warn().Int("status", resp.StatusCode).Str("topic", topic).Msg("push relay rejected message")
		return false
	}
	metrics.PushSends.WithLabelValues("ok").Inc()
	return true
}

// Nop discards all pushes; used when no relay is configured.
type Nop struct{}

func (Nop) SendPush(context.Context, string, string) bool { return false }
