// Package api exposes the orchestrator's external interfaces: submission,
// status, logs, cancel, review, and retry over HTTP, plus a per-task
// WebSocket live stream. It is a thin translation layer — every handler
// reads or drives state through internal/brain, internal/workflow, or
// internal/content, never touching storage directly.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/workflow"
)

// Server is the orchestrator's HTTP/WebSocket API.
type Server struct {
	httpServer *http.Server
	brain      *brain.Brain
	executor   *workflow.Executor
	content    *content.Engine
	bus        *notify.Bus
}

// NewServer builds the chi router and binds it to addr:port; Start still
// has to be called to actually listen.
func NewServer(b *brain.Brain, exec *workflow.Executor, eng *content.Engine, bus *notify.Bus, host string, port int) *Server {
	s := &Server{brain: b, executor: exec, content: eng, bus: bus}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/api/health", s.handleHealth)

	r.Post("/roadmaps", s.handleSubmitRoadmap)
	r.Get("/tasks/{task_id}", s.handleGetTask)
	r.Get("/tasks/{task_id}/logs", s.handleGetLogs)
	r.Post("/tasks/{task_id}/cancel", s.handleCancelTask)
	r.Post("/tasks/{task_id}/review", s.handleReviewTask)
	r.Get("/tasks/{task_id}/stream", s.handleLiveStream)
	r.Post("/roadmaps/{roadmap_id}/concepts/{concept_id}/{content_type}/retry", s.handleRetryContent)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}
	return s
}

// Start begins listening; it blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("roadmap orchestrator api listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
