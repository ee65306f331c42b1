// Package feed streams candle-close events over a websocket. It is the
// event-driven tick source for the scanner; the scanner's interval timer
// remains as a redundancy fallback when the stream stalls, so dropped
// events are acceptable.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evdnx/fxscan/logger"
)

// CandleEvent announces that a candle closed for an instrument.
type CandleEvent struct {
	Instrument string    `json:"instrument"`
	Close      float64   `json:"close"`
	Time       time.Time `json:"time"`
}

// Feed maintains a websocket connection with reconnect backoff and fans
// events into a bounded channel.
type Feed struct {
	url    string
	log    logger.Logger
	events chan CandleEvent
}

func New(url string, log logger.Logger) *Feed {
	if log == nil {
		log = logger.NewNop()
	}
	return &Feed{
		url:    url,
		log:    log,
		events: make(chan CandleEvent, 64),
	}
}

// Events returns the event channel. Closed when Run exits.
func (f *Feed) Events() <-chan CandleEvent { return f.events }

// Run connects and reads until the context is cancelled, reconnecting with
// capped backoff on any error.
func (f *Feed) Run(ctx context.Context) {
	defer close(f.events)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.log.Warn("feed_dial_failed", logger.Err(err), logger.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		f.log.Info("feed_connected", logger.String("url", f.url))
		f.readLoop(ctx, conn)
		conn.Close()
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("feed_read_failed", logger.Err(err))
			}
			return
		}
		var ev CandleEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			f.log.Warn("feed_bad_message", logger.Err(err))
			continue
		}
		if ev.Instrument == "" || ev.Close <= 0 {
			continue
		}
		select {
		case f.events <- ev:
		default:
			// scanner busy; the timer tick will catch up
		}
	}
}
