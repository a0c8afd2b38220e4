package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/roadmap-ai/orchestrator/internal/notify"
)

// handleLiveStream upgrades to a WebSocket and pushes every notify.Event
// for one task as it is published. Unlike the teacher's bidirectional
// RPC hub this is one-way server push: a client never sends commands
// over this connection, so there is no frame/method protocol to parse.
func (s *Server) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	if r.URL.Query().Get("include_history") == "true" {
		limit := 100
		if l, err := strconv.Atoi(r.URL.Query().Get("history_limit")); err == nil && l > 0 {
			limit = l
		}
		for _, e := range s.bus.History(taskID, limit) {
			if err := writeEvent(ctx, conn, e); err != nil {
				return
			}
		}
	}

	events, unsubscribe := s.bus.SubscribeChan(taskID, 32)
	defer unsubscribe()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, conn, e); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e notify.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("marshal event", "error", err)
		return nil
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
