package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsServer(t *testing.T, messages ...string) *httptest.Server {
	t.Helper()
	var up websocket.Upgrader
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFeedDeliversCandleEvents(t *testing.T) {
	srv := wsServer(t,
		`{"instrument":"XAU_USD","close":2400.5}`,
	)
	defer srv.Close()

	f := New(wsURL(srv), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case ev := <-f.Events():
		if ev.Instrument != "XAU_USD" || ev.Close != 2400.5 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

// Garbage and incomplete messages are skipped; the stream keeps going.
func TestFeedSkipsMalformedMessages(t *testing.T) {
	srv := wsServer(t,
		`not json`,
		`{"instrument":"","close":1.1}`,
		`{"instrument":"EUR_USD","close":0}`,
		`{"instrument":"EUR_USD","close":1.1002}`,
	)
	defer srv.Close()

	f := New(wsURL(srv), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case ev := <-f.Events():
		if ev.Instrument != "EUR_USD" || ev.Close != 1.1002 {
			t.Fatalf("expected only the valid event, got %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventsChannelClosesOnCancel(t *testing.T) {
	srv := wsServer(t)
	defer srv.Close()

	f := New(wsURL(srv), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go f.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case _, ok := <-f.Events():
		if ok {
			t.Fatal("expected a closed channel, got an event")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events channel never closed")
	}
}
