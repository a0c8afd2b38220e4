package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roadmap-ai/orchestrator/internal/nodes"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.brain.GetTask(r.Context(), taskID)
	if errors.Is(err, storage.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load task")
		return
	}

	// States is the in-memory index of "where is this task right now",
	// updated the instant a node starts; current_step is only as fresh as
	// the last committed transaction. Prefer the live value when the task
	// is still tracked.
	if step, ok := s.brain.States.GetLiveStep(taskID); ok {
		task.CurrentStep = step
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	logs, err := s.brain.ListTaskLogs(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load logs")
		return
	}

	if category := r.URL.Query().Get("category"); category != "" {
		filtered := logs[:0:0]
		for _, l := range logs {
			if string(l.Category) == category {
				filtered = append(filtered, l)
			}
		}
		logs = filtered
	}

	// Most recent first, per §6.
	reversed := make([]roadmap.ExecutionLog, len(logs))
	for i, l := range logs {
		reversed[len(logs)-1-i] = l
	}
	logs = reversed

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(logs) {
			logs = logs[:limit]
		}
	}

	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	if s.executor.Cancel(taskID) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
		return
	}

	// Not currently driving: either suspended awaiting review, or already
	// terminal. Only a suspended task can still be cancelled directly.
	task, err := s.brain.GetTask(r.Context(), taskID)
	if errors.Is(err, storage.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load task")
		return
	}
	if task.Status.Terminal() {
		writeError(w, http.StatusConflict, "task is already in a terminal state")
		return
	}

	if err := s.brain.CancelTask(r.Context(), taskID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not cancel task")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelled"})
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback,omitempty"`
}

func (s *Server) handleReviewTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	task, err := s.brain.GetTask(r.Context(), taskID)
	if errors.Is(err, storage.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load task")
		return
	}
	if task.Status != roadmap.TaskHumanReviewPending {
		writeError(w, http.StatusConflict, "task is not awaiting human review")
		return
	}

	var req reviewRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision := nodes.ReviewDecision(req.Decision)
	if decision != nodes.DecisionApprove && decision != nodes.DecisionModify {
		writeError(w, http.StatusBadRequest, "decision must be \"approve\" or \"modify\"")
		return
	}

	go func() {
		if err := s.executor.Resume(context.Background(), taskID, decision, req.Feedback); err != nil {
			slog.Error("workflow resume failed", "task_id", taskID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "resuming"})
}
