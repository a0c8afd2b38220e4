package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/checkpoint"
	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/execlog"
	"github.com/roadmap-ai/orchestrator/internal/nodes"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/statemgr"
	"github.com/roadmap-ai/orchestrator/internal/storage"
	"github.com/roadmap-ai/orchestrator/internal/workflow"
)

// fakeInvoker answers every sub-agent call with a canned response, mirroring
// internal/content's own test fake.
type fakeInvoker struct{}

func (fakeInvoker) Invoke(ctx context.Context, role agents.Role, prompt string) (string, error) {
	switch role {
	case agents.RoleContentTutorial:
		return "a tutorial", nil
	case agents.RoleContentResources:
		return `{"resources": [{"type": "article", "url": "https://example.com", "title": "t", "summary": "s"}]}`, nil
	case agents.RoleContentQuiz:
		return `{"quiz": [{"question": "q", "choices": ["a", "b"], "answer_index": 0, "explanation": "e"}]}`, nil
	}
	return "", fmt.Errorf("unexpected role %s", role)
}

// fakeRunner is a workflow.NodeRunner whose IntentAnalysis/CurriculumDesign
// produce a minimal single-concept roadmap and whose validation always
// passes, so a submission reaches human_review_pending deterministically.
type fakeRunner struct {
	b *brain.Brain
}

func (f *fakeRunner) IntentAnalysis(ctx context.Context, taskID, userRequest string) (*roadmap.IntentAnalysis, string, error) {
	return &roadmap.IntentAnalysis{TaskID: taskID, ParsedGoal: userRequest}, "roadmap-" + taskID, nil
}

func (f *fakeRunner) CurriculumDesign(ctx context.Context, taskID, roadmapID, userID string, ia *roadmap.IntentAnalysis) (*roadmap.Roadmap, error) {
	return &roadmap.Roadmap{
		RoadmapID: roadmapID,
		UserID:    userID,
		Title:     "learn go",
		Stages: []roadmap.Stage{{
			StageID: "stage-1",
			Modules: []roadmap.Module{{
				ModuleID: "module-1",
				Concepts: []roadmap.Concept{{ConceptID: "concept-0", Name: "basics"}},
			}},
		}},
	}, nil
}

func (f *fakeRunner) StructureValidation(ctx context.Context, taskID string, rm *roadmap.Roadmap, round int) (*roadmap.ValidationResult, error) {
	return &roadmap.ValidationResult{TaskID: taskID, RoadmapID: rm.RoadmapID, ValidationRound: round, IsValid: true}, nil
}

func (f *fakeRunner) RoadmapEdit(ctx context.Context, taskID string, rm *roadmap.Roadmap, source roadmap.EditSource, issues []roadmap.ValidationIssue, feedback string) (*roadmap.Roadmap, *roadmap.EditRecord, error) {
	return rm, &roadmap.EditRecord{TaskID: taskID, RoadmapID: rm.RoadmapID, EditSource: source}, nil
}

func (f *fakeRunner) StartHumanReview(ctx context.Context, taskID, resumeToken string) error {
	return nil
}

func (f *fakeRunner) CompleteHumanReview(ctx context.Context, taskID string, decision nodes.ReviewDecision, nextStep string) (nodes.ReviewDecision, error) {
	return decision, nil
}

func (f *fakeRunner) ContentGeneration(ctx context.Context, taskID, roadmapID string, engine *content.Engine, rm *roadmap.Roadmap) error {
	status, err := engine.Run(ctx, taskID, rm)
	if err != nil {
		return err
	}
	return f.b.CompleteTask(ctx, taskID, roadmapID, roadmap.TaskStatus(status))
}

type testHarness struct {
	server *Server
	brain  *brain.Brain
	router http.Handler
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	uow := storage.New(db, 5*time.Second)
	bus := notify.NewBus(32)
	t.Cleanup(bus.Close)

	b := brain.New(uow, checkpoint.NewFileCheckpointer(t.TempDir()), statemgr.New(), execlog.New(uow), bus)
	fr := &fakeRunner{b: b}
	engine := content.New(b, fakeInvoker{}, 2)
	exec := workflow.New(b, fr, engine, 4, 3)

	s := NewServer(b, exec, engine, bus, "localhost", 0)
	return &testHarness{server: s, brain: b, router: s.httpServer.Handler}
}

func (h *testHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// waitForStatus polls the task until it reaches one of the wanted statuses
// or the timeout elapses, since submission drives the executor in a
// detached goroutine.
func waitForStatus(t *testing.T, h *testHarness, taskID string, want ...roadmap.TaskStatus) *roadmap.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := h.brain.GetTask(context.Background(), taskID)
		if err == nil {
			for _, w := range want {
				if task.Status == w {
					return task
				}
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %v", taskID, want)
	return nil
}

func TestHandleHealth(t *testing.T) {
	h := newTestHarness(t)
	w := h.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitRoadmapCreatesTaskAndDrivesToHumanReview(t *testing.T) {
	h := newTestHarness(t)

	w := h.do(t, http.MethodPost, "/roadmaps", submissionRequest{
		UserID:      "user-1",
		Preferences: preferences{LearningGoal: "learn go"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp submissionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.TaskID)

	task := waitForStatus(t, h, resp.TaskID, roadmap.TaskHumanReviewPending)
	assert.Equal(t, "roadmap-"+resp.TaskID, task.RoadmapID)
}

func TestSubmitRoadmapRejectsMissingFields(t *testing.T) {
	h := newTestHarness(t)
	w := h.do(t, http.MethodPost, "/roadmaps", submissionRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTaskReturns404ForUnknownTask(t *testing.T) {
	h := newTestHarness(t)
	w := h.do(t, http.MethodGet, "/tasks/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTaskReturnsSeededTask(t *testing.T) {
	h := newTestHarness(t)
	require.NoError(t, h.brain.CreateTask(context.Background(), "task-x", "user-1", "learn go"))

	w := h.do(t, http.MethodGet, "/tasks/task-x", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var task roadmap.Task
	require.NoError(t, json.NewDecoder(w.Body).Decode(&task))
	assert.Equal(t, "task-x", task.TaskID)
}

func TestReviewRejectsWhenTaskNotAwaitingReview(t *testing.T) {
	h := newTestHarness(t)
	require.NoError(t, h.brain.CreateTask(context.Background(), "task-y", "user-1", "learn go"))

	w := h.do(t, http.MethodPost, "/tasks/task-y/review", reviewRequest{Decision: "approve"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReviewRejectsInvalidDecision(t *testing.T) {
	h := newTestHarness(t)

	w := h.do(t, http.MethodPost, "/roadmaps", submissionRequest{
		UserID:      "user-1",
		Preferences: preferences{LearningGoal: "learn go"},
	})
	var resp submissionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	waitForStatus(t, h, resp.TaskID, roadmap.TaskHumanReviewPending)

	w = h.do(t, http.MethodPost, "/tasks/"+resp.TaskID+"/review", reviewRequest{Decision: "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewApproveCompletesTaskAndRetryWorks(t *testing.T) {
	h := newTestHarness(t)

	w := h.do(t, http.MethodPost, "/roadmaps", submissionRequest{
		UserID:      "user-1",
		Preferences: preferences{LearningGoal: "learn go"},
	})
	var resp submissionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	task := waitForStatus(t, h, resp.TaskID, roadmap.TaskHumanReviewPending)
	roadmapID := task.RoadmapID

	w = h.do(t, http.MethodPost, "/tasks/"+resp.TaskID+"/review", reviewRequest{Decision: "approve"})
	require.Equal(t, http.StatusAccepted, w.Code)

	waitForStatus(t, h, resp.TaskID, roadmap.TaskCompleted, roadmap.TaskPartialFailure)

	w = h.do(t, http.MethodPost, "/roadmaps/"+roadmapID+"/concepts/concept-0/quiz/retry", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRetryRejectsUnknownContentType(t *testing.T) {
	h := newTestHarness(t)
	w := h.do(t, http.MethodPost, "/roadmaps/roadmap-1/concepts/concept-0/bogus/retry", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetryRejectsUnknownRoadmap(t *testing.T) {
	h := newTestHarness(t)
	w := h.do(t, http.MethodPost, "/roadmaps/does-not-exist/concepts/concept-0/quiz/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelSuspendedTaskFlipsStatusToCancelled(t *testing.T) {
	h := newTestHarness(t)

	w := h.do(t, http.MethodPost, "/roadmaps", submissionRequest{
		UserID:      "user-1",
		Preferences: preferences{LearningGoal: "learn go"},
	})
	var resp submissionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	waitForStatus(t, h, resp.TaskID, roadmap.TaskHumanReviewPending)

	w = h.do(t, http.MethodPost, "/tasks/"+resp.TaskID+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	task := waitForStatus(t, h, resp.TaskID, roadmap.TaskCancelled)
	assert.Equal(t, roadmap.TaskCancelled, task.Status)
}

func TestCancelAlreadyTerminalTaskConflicts(t *testing.T) {
	h := newTestHarness(t)

	w := h.do(t, http.MethodPost, "/roadmaps", submissionRequest{
		UserID:      "user-1",
		Preferences: preferences{LearningGoal: "learn go"},
	})
	var resp submissionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	waitForStatus(t, h, resp.TaskID, roadmap.TaskHumanReviewPending)

	w = h.do(t, http.MethodPost, "/tasks/"+resp.TaskID+"/review", reviewRequest{Decision: "approve"})
	require.Equal(t, http.StatusAccepted, w.Code)
	waitForStatus(t, h, resp.TaskID, roadmap.TaskCompleted, roadmap.TaskPartialFailure)

	w = h.do(t, http.MethodPost, "/tasks/"+resp.TaskID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetLogsFiltersAndReverses(t *testing.T) {
	h := newTestHarness(t)

	w := h.do(t, http.MethodPost, "/roadmaps", submissionRequest{
		UserID:      "user-1",
		Preferences: preferences{LearningGoal: "learn go"},
	})
	var resp submissionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	waitForStatus(t, h, resp.TaskID, roadmap.TaskHumanReviewPending)

	w = h.do(t, http.MethodGet, "/tasks/"+resp.TaskID+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var logs []roadmap.ExecutionLog
	require.NoError(t, json.NewDecoder(w.Body).Decode(&logs))
	require.NotEmpty(t, logs)
	for i := 1; i < len(logs); i++ {
		assert.False(t, logs[i].CreatedAt.After(logs[i-1].CreatedAt))
	}

	w = h.do(t, http.MethodGet, "/tasks/"+resp.TaskID+"/logs?category=workflow", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var filtered []roadmap.ExecutionLog
	require.NoError(t, json.NewDecoder(w.Body).Decode(&filtered))
	for _, l := range filtered {
		assert.Equal(t, roadmap.CategoryWorkflow, l.Category)
	}
}
