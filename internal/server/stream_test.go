package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tbarrett/upswatch/internal/event"
	"github.com/tbarrett/upswatch/internal/session"
	"github.com/tbarrett/upswatch/internal/status"
)

// streamedEvent mirrors event.Event with an untyped payload for decoding.
type streamedEvent struct {
	Topic   string         `json:"topic"`
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload"`
}

func dialStream(t *testing.T, httpURL, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/api/v1/events" + query

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket.Dial(%q): %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) streamedEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var e streamedEvent
	if err := wsjson.Read(ctx, conn, &e); err != nil {
		t.Fatalf("wsjson.Read: %v", err)
	}
	return e
}

func TestStream_ForwardsEvents(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	conn := dialStream(t, httpSrv.URL, "")

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)

	ts.bus.Publish(context.Background(), event.New(event.TopicStatusUpdated, "session", session.StatusEvent{
		Device: "ups1",
		Status: status.Status{Power: status.PowerOnline},
	}))

	e := readEvent(t, conn)
	if e.Topic != event.TopicStatusUpdated {
		t.Errorf("topic = %q, want %q", e.Topic, event.TopicStatusUpdated)
	}
	if e.Payload["device"] != "ups1" {
		t.Errorf("payload device = %v, want ups1", e.Payload["device"])
	}
}

func TestStream_TopicFilter(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	conn := dialStream(t, httpSrv.URL, "?topic="+event.TopicPowerTransition)
	time.Sleep(50 * time.Millisecond)

	ts.bus.Publish(context.Background(), event.New(event.TopicStatusUpdated, "session", session.StatusEvent{Device: "ups1"}))
	ts.bus.Publish(context.Background(), event.New(event.TopicPowerTransition, "session", session.PowerTransitionEvent{
		Device: "ups1", From: status.PowerOnline, To: status.PowerOnBattery,
	}))

	e := readEvent(t, conn)
	if e.Topic != event.TopicPowerTransition {
		t.Errorf("first event topic = %q, want only %q", e.Topic, event.TopicPowerTransition)
	}
}

func TestStream_SlowConsumerNeverBlocksPublish(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	// The connection is held open but never read from, so the per-connection
	// buffer fills and later events hit the drop branch.
	dialStream(t, httpSrv.URL, "")
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	for i := 0; i < streamBuffer*4; i++ {
		ts.bus.Publish(context.Background(), event.New(event.TopicStatusUpdated, "session", session.StatusEvent{
			Device: "ups1",
			Status: status.Status{Power: status.PowerOnline},
		}))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publishing %d events past a stalled reader took %v, want no blocking", streamBuffer*4, elapsed)
	}
}
