package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

var contentTypeByPathSegment = map[string]content.ContentType{
	"tutorial":  content.ContentTypeTutorial,
	"resources": content.ContentTypeResources,
	"quiz":      content.ContentTypeQuiz,
}

// handleRetryContent schedules a single sub-agent call for one concept's
// content type. It runs synchronously: a retry is a single LLM call, not
// a multi-node pipeline, so there is no need to return before it finishes.
func (s *Server) handleRetryContent(w http.ResponseWriter, r *http.Request) {
	roadmapID := chi.URLParam(r, "roadmap_id")
	conceptID := chi.URLParam(r, "concept_id")
	segment := chi.URLParam(r, "content_type")

	contentType, ok := contentTypeByPathSegment[segment]
	if !ok {
		writeError(w, http.StatusBadRequest, "content_type must be one of tutorial, resources, quiz")
		return
	}

	taskID, err := s.brain.ResolveTaskIDForRoadmap(r.Context(), roadmapID)
	if errors.Is(err, storage.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "roadmap not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not resolve task for roadmap")
		return
	}

	if err := s.content.Retry(r.Context(), taskID, conceptID, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "retry failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "retried"})
}
