package content

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/checkpoint"
	"github.com/roadmap-ai/orchestrator/internal/execlog"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/statemgr"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

// fakeInvoker replies to every role with a canned JSON/text response, or
// fails a named role, and tracks the peak number of concurrent in-flight
// calls so tests can assert the concurrency bound is respected.
type fakeInvoker struct {
	failRole agents.Role

	mu      sync.Mutex
	inFlight int32
	peak     int32
}

func (f *fakeInvoker) Invoke(ctx context.Context, role agents.Role, prompt string) (string, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if cur > f.peak {
		f.peak = cur
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	if role == f.failRole {
		return "", fmt.Errorf("sub-agent for %s failed", role)
	}

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

func newTestBrain(t *testing.T) (*brain.Brain, *storage.UnitOfWork) {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	uow := storage.New(db, 5*time.Second)
	b := brain.New(uow, checkpoint.NewFileCheckpointer(t.TempDir()), statemgr.New(), execlog.New(uow), notify.NewBus(16))
	return b, uow
}

func seedRoadmap(t *testing.T, uow *storage.UnitOfWork, taskID string, rm *roadmap.Roadmap) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, uow.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		if err := repo.CreateTask(ctx, &roadmap.Task{TaskID: taskID, UserID: "u1", Title: rm.Title, Status: roadmap.TaskPending}); err != nil {
			return err
		}
		return repo.UpsertRoadmapFramework(ctx, rm)
	}))
}

func threeConceptRoadmap() *roadmap.Roadmap {
	concepts := make([]roadmap.Concept, 0, 3)
	for i := 0; i < 3; i++ {
		concepts = append(concepts, roadmap.Concept{
			ConceptID: fmt.Sprintf("concept-%d", i),
			Name:      fmt.Sprintf("concept %d", i),
		})
	}
	return &roadmap.Roadmap{
		RoadmapID: "roadmap-1",
		Title:     "learn go",
		Stages: []roadmap.Stage{{
			StageID: "stage-1",
			Modules: []roadmap.Module{{
				ModuleID: "module-1",
				Concepts: concepts,
			}},
		}},
	}
}

func TestEngineRunAllSucceedReturnsCompleted(t *testing.T) {
	b, uow := newTestBrain(t)
	rm := threeConceptRoadmap()
	seedRoadmap(t, uow, "task_1", rm)

	inv := &fakeInvoker{}
	engine := New(b, inv, 2)

	status, err := engine.Run(context.Background(), "task_1", rm)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)

	for i := 0; i < 3; i++ {
		var c *roadmap.Concept
		require.NoError(t, uow.Do(context.Background(), func(ctx context.Context, repo *storage.Repo) error {
			var err error
			c, err = repo.GetConcept(ctx, fmt.Sprintf("concept-%d", i))
			return err
		}))
		assert.Equal(t, roadmap.SubCompleted, c.ContentStatus)
		assert.Equal(t, roadmap.SubCompleted, c.ResourcesStatus)
		assert.Equal(t, roadmap.SubCompleted, c.QuizStatus)
	}
}

func TestEngineRunOneSubAgentFailureYieldsPartialFailure(t *testing.T) {
	b, uow := newTestBrain(t)
	rm := threeConceptRoadmap()
	seedRoadmap(t, uow, "task_2", rm)

	inv := &fakeInvoker{failRole: agents.RoleContentQuiz}
	engine := New(b, inv, 2)

	status, err := engine.Run(context.Background(), "task_2", rm)
	require.NoError(t, err)
	assert.Equal(t, "partial_failure", status)

	var c *roadmap.Concept
	require.NoError(t, uow.Do(context.Background(), func(ctx context.Context, repo *storage.Repo) error {
		var err error
		c, err = repo.GetConcept(ctx, "concept-0")
		return err
	}))
	assert.Equal(t, roadmap.SubCompleted, c.ContentStatus)
	assert.Equal(t, roadmap.SubCompleted, c.ResourcesStatus)
	assert.Equal(t, roadmap.SubFailed, c.QuizStatus)
}

func TestEngineRunRespectsConcurrencyBound(t *testing.T) {
	b, uow := newTestBrain(t)
	rm := threeConceptRoadmap()
	seedRoadmap(t, uow, "task_3", rm)

	inv := &fakeInvoker{}
	engine := New(b, inv, 1)

	_, err := engine.Run(context.Background(), "task_3", rm)
	require.NoError(t, err)

	// With a concurrency of 1, at most one concept's three sub-agents run
	// at a time, so the observed peak in-flight calls should never exceed
	// that concept's own fan-out of three.
	assert.LessOrEqual(t, int(inv.peak), 3)
}

func TestEngineRunStopsAndReturnsCanceledOnContextCancel(t *testing.T) {
	b, uow := newTestBrain(t)
	rm := threeConceptRoadmap()
	seedRoadmap(t, uow, "task_5", rm)

	inv := &fakeInvoker{}
	engine := New(b, inv, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := engine.Run(ctx, "task_5", rm)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, status)
}

func TestEngineRetryRegeneratesOnlyOneSubArtifact(t *testing.T) {
	b, uow := newTestBrain(t)
	rm := threeConceptRoadmap()
	seedRoadmap(t, uow, "task_4", rm)

	inv := &fakeInvoker{}
	engine := New(b, inv, 2)

	_, err := engine.Run(context.Background(), "task_4", rm)
	require.NoError(t, err)

	retryInv := &fakeInvoker{}
	retryEngine := New(b, retryInv, 2)
	require.NoError(t, retryEngine.Retry(context.Background(), "task_4", "concept-0", ContentTypeQuiz))

	var c *roadmap.Concept
	require.NoError(t, uow.Do(context.Background(), func(ctx context.Context, repo *storage.Repo) error {
		var err error
		c, err = repo.GetConcept(ctx, "concept-0")
		return err
	}))
	assert.Equal(t, roadmap.SubCompleted, c.QuizStatus)
}
