package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/tbarrett/upswatch/internal/event"
)

// streamBuffer is the per-connection event backlog. A client that cannot
// drain this many events is dropped rather than allowed to stall the bus.
const streamBuffer = 64

const streamWriteTimeout = 10 * time.Second

// handleEvents upgrades to a websocket and forwards bus events as JSON
// until the client goes away. An optional topic query parameter narrows
// the stream to one topic.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	events := make(chan event.Event, streamBuffer)
	forward := func(_ context.Context, e event.Event) {
		select {
		case events <- e:
		default:
			// Buffer full. Dropping here keeps publishers unblocked;
			// the slow client detects the gap by event ID if it cares.
		}
	}

	var unsubscribe func()
	if topic := r.URL.Query().Get("topic"); topic != "" {
		unsubscribe = s.bus.Subscribe(topic, forward)
	} else {
		unsubscribe = s.bus.SubscribeAll(forward)
	}
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case e := <-events:
			writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, e)
			cancel()
			if err != nil {
				s.logger.Debug("websocket write failed, dropping client",
					zap.Error(err))
				return
			}
		}
	}
}
