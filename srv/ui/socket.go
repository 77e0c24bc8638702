package ui

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/opd-ai/storybook/srv/generator"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// handleWebSocket replays a build's messages so far, then streams new ones
// until the build finishes.
func (s *BookServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid build id")
		return
	}

	var (
		history []generator.WSMessage
		updates <-chan generator.WSMessage
	)
	if cached, found := s.progress.Get(id); found {
		progress := cached.(*generator.BuildProgress)
		history, updates = progress.Subscribe()
		defer progress.Unsubscribe(updates)
	} else {
		// Known only to the store, e.g. built by another instance.
		status, ok, err := s.store.Load(r.Context(), id)
		if err != nil || !ok {
			writeError(w, http.StatusNotFound, "build not found")
			return
		}
		msg := generator.NewWSMessage("state", status.State, status.Error)
		history = []generator.WSMessage{msg}
		closed := make(chan generator.WSMessage)
		close(closed)
		updates = closed
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("build", id), zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reads only serve control frames and notice a client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg generator.WSMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Debug("websocket write failed", zap.String("build", id), zap.Error(err))
			return false
		}
		return true
	}

	for _, msg := range history {
		if !send(msg) {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "build finished"),
					time.Now().Add(writeWait))
				return
			}
			if !send(msg) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
