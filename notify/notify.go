// Package notify is the best-effort notification sink. Delivery failures
// are logged and must never block trading.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/evdnx/fxscan/logger"
)

type Notifier interface {
	Send(message, category string)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(string, string) {}

// Webhook posts messages as JSON to a configured URL (Discord/Slack style).
type Webhook struct {
	url    string
	client *http.Client
	log    logger.Logger
}

func NewWebhook(url string, log logger.Logger) *Webhook {
	if log == nil {
		log = logger.NewNop()
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

// Send is fire-and-forget: errors are logged, never returned.
func (w *Webhook) Send(message, category string) {
	if w.url == "" {
		return
	}
	payload := map[string]string{
		"content":  message,
		"category": category,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.log.Warn("notify_marshal_failed", logger.Err(err))
		return
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(data))
	if err != nil {
		w.log.Warn("notify_post_failed", logger.Err(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		w.log.Warn("notify_rejected", logger.Int("status", resp.StatusCode))
	}
}
