package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/loqalabs/juggie/internal/protocol"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPingPeriod  = 30 * time.Second
	wsIdleTimeout = 10 * time.Minute
	wsBuffer      = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleProgress relays one session's progress events to a browser until the
// final event, a client disconnect or the idle timeout.
func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if h.progress == nil {
		http.Error(w, "progress streaming is disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slogError(err))
		return
	}
	defer conn.Close()
	log := h.log.With(slog.String("session_id", id))

	// Intermediate events may be dropped for a slow client; the final one never is.
	events := make(chan protocol.ProgressEvent, wsBuffer)
	final := make(chan protocol.ProgressEvent, 1)
	unsubscribe, err := h.progress.SubscribeProgress(id, func(evt protocol.ProgressEvent) {
		if evt.Final {
			select {
			case final <- evt:
			default:
			}
			return
		}
		select {
		case events <- evt:
		default:
			log.Warn("dropping progress event for slow client", slog.String("stage", evt.Stage))
		}
	})
	if err != nil {
		log.Warn("subscribe progress", slogError(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "progress unavailable"),
			time.Now().Add(wsWriteWait))
		return
	}
	defer unsubscribe()

	// The client never sends data; reading only surfaces its close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	idle := time.NewTimer(wsIdleTimeout)
	defer idle.Stop()

	send := func(evt protocol.ProgressEvent) bool {
		data, err := protocol.Encode(evt)
		if err != nil {
			log.Warn("encode progress", slogError(err))
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("websocket write failed", slogError(err))
			return false
		}
		return true
	}

	for {
		select {
		case evt := <-events:
			if !send(evt) {
				return
			}
		case evt := <-final:
			// Flush what was queued ahead of the final event.
			for n := len(events); n > 0; n-- {
				if !send(<-events) {
					return
				}
			}
			if send(evt) {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
					time.Now().Add(wsWriteWait))
			}
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-idle.C:
			return
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
