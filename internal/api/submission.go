package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// preferences is the learner-facing shape of a roadmap submission.
type preferences struct {
	LearningGoal          string   `json:"learning_goal"`
	AvailableHoursPerWeek float64  `json:"available_hours_per_week,omitempty"`
	CurrentLevel          string   `json:"current_level,omitempty"`
	ContentPreference     []string `json:"content_preference,omitempty"`
}

type submissionRequest struct {
	UserID      string      `json:"user_id"`
	Preferences preferences `json:"preferences"`
}

type submissionResponse struct {
	TaskID string `json:"task_id"`
}

// handleSubmitRoadmap starts a new generation run. The provisional
// roadmap id is only assigned inside IntentAnalysis (R1), which runs
// after this handler returns, so the response carries just the task id —
// a client learns the roadmap id from GET /tasks/{task_id} once intent
// analysis completes.
func (s *Server) handleSubmitRoadmap(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Preferences.LearningGoal == "" {
		writeError(w, http.StatusBadRequest, "user_id and preferences.learning_goal are required")
		return
	}

	taskID := roadmap.GenerateTaskID()
	title := req.Preferences.LearningGoal
	if err := s.brain.CreateTask(r.Context(), taskID, req.UserID, title); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create task")
		return
	}

	userRequest := composeUserRequest(req.Preferences)

	go func() {
		ctx := context.Background()
		if err := s.executor.Start(ctx, taskID, req.UserID, userRequest); err != nil {
			slog.Error("workflow run failed", "task_id", taskID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, submissionResponse{TaskID: taskID})
}

func composeUserRequest(p preferences) string {
	req := fmt.Sprintf("Learning goal: %s", p.LearningGoal)
	if p.AvailableHoursPerWeek > 0 {
		req += fmt.Sprintf("\nAvailable hours per week: %.1f", p.AvailableHoursPerWeek)
	}
	if p.CurrentLevel != "" {
		req += fmt.Sprintf("\nCurrent skill level: %s", p.CurrentLevel)
	}
	if len(p.ContentPreference) > 0 {
		req += fmt.Sprintf("\nPreferred content types: %v", p.ContentPreference)
	}
	return req
}
