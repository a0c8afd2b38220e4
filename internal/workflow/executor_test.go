package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/checkpoint"
	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/execlog"
	"github.com/roadmap-ai/orchestrator/internal/nodes"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/statemgr"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

func newTestBrain(t *testing.T) *brain.Brain {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	uow := storage.New(db, 5*time.Second)
	return brain.New(uow, checkpoint.NewFileCheckpointer(t.TempDir()), statemgr.New(), execlog.New(uow), notify.NewBus(16))
}

// fakeRunner is a NodeRunner whose outputs are scripted per test, so the
// executor's branch logic can be exercised without a live model provider.
type fakeRunner struct {
	mu sync.Mutex

	validationQueue []*roadmap.ValidationResult
	validationCalls int
	editCalls       int

	intentErrQueue []error
	intentCalls    int32

	contentErr    error
	contentStatus roadmap.TaskStatus
	contentCalled int32

	b *brain.Brain
}

func (f *fakeRunner) IntentAnalysis(ctx context.Context, taskID, userRequest string) (*roadmap.IntentAnalysis, string, error) {
	n := atomic.AddInt32(&f.intentCalls, 1)
	f.mu.Lock()
	var queued error
	if idx := int(n) - 1; idx < len(f.intentErrQueue) {
		queued = f.intentErrQueue[idx]
	}
	f.mu.Unlock()
	if queued != nil {
		return nil, "", queued
	}
	return &roadmap.IntentAnalysis{TaskID: taskID, ParsedGoal: userRequest}, "roadmap-" + taskID, nil
}

func (f *fakeRunner) CurriculumDesign(ctx context.Context, taskID, roadmapID, userID string, ia *roadmap.IntentAnalysis) (*roadmap.Roadmap, error) {
	return &roadmap.Roadmap{RoadmapID: roadmapID, UserID: userID, Title: "learn things"}, nil
}

func (f *fakeRunner) StructureValidation(ctx context.Context, taskID string, rm *roadmap.Roadmap, round int) (*roadmap.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validationCalls++

	if len(f.validationQueue) == 0 {
		return &roadmap.ValidationResult{TaskID: taskID, RoadmapID: rm.RoadmapID, ValidationRound: round, IsValid: true}, nil
	}
	next := f.validationQueue[0]
	f.validationQueue = f.validationQueue[1:]
	next.TaskID = taskID
	next.RoadmapID = rm.RoadmapID
	next.ValidationRound = round
	return next, nil
}

func (f *fakeRunner) RoadmapEdit(ctx context.Context, taskID string, rm *roadmap.Roadmap, source roadmap.EditSource, issues []roadmap.ValidationIssue, feedback string) (*roadmap.Roadmap, *roadmap.EditRecord, error) {
	f.mu.Lock()
	f.editCalls++
	f.mu.Unlock()
	return rm, &roadmap.EditRecord{TaskID: taskID, RoadmapID: rm.RoadmapID, EditSource: source}, nil
}

func (f *fakeRunner) StartHumanReview(ctx context.Context, taskID, resumeToken string) error {
	return nil
}

func (f *fakeRunner) CompleteHumanReview(ctx context.Context, taskID string, decision nodes.ReviewDecision, nextStep string) (nodes.ReviewDecision, error) {
	return decision, nil
}

func (f *fakeRunner) ContentGeneration(ctx context.Context, taskID, roadmapID string, engine *content.Engine, rm *roadmap.Roadmap) error {
	atomic.AddInt32(&f.contentCalled, 1)
	if f.contentErr != nil {
		return f.contentErr
	}
	status := f.contentStatus
	if status == "" {
		status = roadmap.TaskCompleted
	}
	return f.b.CompleteTask(ctx, taskID, roadmapID, status)
}

func seedTask(t *testing.T, b *brain.Brain, taskID string) {
	t.Helper()
	require.NoError(t, b.CreateTask(context.Background(), taskID, "user-1", "learn go"))
}

func withFastRetryBackoff(t *testing.T) {
	t.Helper()
	orig := nodeRetryBackoff
	nodeRetryBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { nodeRetryBackoff = orig })
}

func TestRecoverableNodeErrorIsRetriedThenSucceeds(t *testing.T) {
	withFastRetryBackoff(t)
	b := newTestBrain(t)
	fr := &fakeRunner{
		b: b,
		intentErrQueue: []error{
			errkind.New(errkind.Recoverable, "transient"),
			errkind.New(errkind.Recoverable, "transient again"),
		},
	}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-retry-1")
	require.NoError(t, e.Start(ctx, "task-retry-1", "user-1", "teach me go"))

	assert.Equal(t, int32(3), atomic.LoadInt32(&fr.intentCalls))

	task, err := getTask(t, b, "task-retry-1")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskHumanReviewPending, task.Status)
}

func TestNonRecoverableNodeErrorFailsImmediately(t *testing.T) {
	withFastRetryBackoff(t)
	b := newTestBrain(t)
	fr := &fakeRunner{
		b:              b,
		intentErrQueue: []error{errkind.New(errkind.Validation, "bad request")},
	}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-retry-2")
	require.Error(t, e.Start(ctx, "task-retry-2", "user-1", "teach me go"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&fr.intentCalls))

	task, err := getTask(t, b, "task-retry-2")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskFailed, task.Status)
}

func TestStartHappyPathSuspendsAtHumanReview(t *testing.T) {
	b := newTestBrain(t)
	fr := &fakeRunner{b: b}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-1")
	require.NoError(t, e.Start(ctx, "task-1", "user-1", "teach me go"))

	cp, err := b.Checkpoints.Latest(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, cp.Suspended)
	assert.Equal(t, string(NodeHumanReview), cp.Node)
	assert.Equal(t, 1, fr.validationCalls)

	task, err := getTask(t, b, "task-1")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskHumanReviewPending, task.Status)
}

func TestResumeApproveRunsContentAndCompletes(t *testing.T) {
	b := newTestBrain(t)
	fr := &fakeRunner{b: b}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-2")
	require.NoError(t, e.Start(ctx, "task-2", "user-1", "teach me go"))
	require.NoError(t, e.Resume(ctx, "task-2", nodes.DecisionApprove, ""))

	assert.Equal(t, int32(1), atomic.LoadInt32(&fr.contentCalled))
	task, err := getTask(t, b, "task-2")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskCompleted, task.Status)
}

func TestResumeModifyLoopsBackToValidationAndAccumulatesRound(t *testing.T) {
	b := newTestBrain(t)
	fr := &fakeRunner{b: b}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-3")
	require.NoError(t, e.Start(ctx, "task-3", "user-1", "teach me go"))
	require.NoError(t, e.Resume(ctx, "task-3", nodes.DecisionModify, "add more depth"))

	assert.Equal(t, 1, fr.editCalls)
	assert.Equal(t, 2, fr.validationCalls)

	cp, err := b.Checkpoints.Latest(ctx, "task-3")
	require.NoError(t, err)
	snap, err := decodeSnapshot(cp.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ValidationRound)
}

func TestValidationFailureLoopsThroughEditThenSucceeds(t *testing.T) {
	b := newTestBrain(t)
	fr := &fakeRunner{
		b: b,
		validationQueue: []*roadmap.ValidationResult{
			{IsValid: false, Issues: []roadmap.ValidationIssue{{Severity: "critical", Issue: "missing basics"}}},
		},
	}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-4")
	require.NoError(t, e.Start(ctx, "task-4", "user-1", "teach me go"))

	assert.Equal(t, 1, fr.editCalls)
	assert.Equal(t, 2, fr.validationCalls)

	cp, err := b.Checkpoints.Latest(ctx, "task-4")
	require.NoError(t, err)
	assert.Equal(t, string(NodeHumanReview), cp.Node)
}

func TestValidationNeverConvergesGoesToHumanReviewAtMaxRounds(t *testing.T) {
	b := newTestBrain(t)
	fr := &fakeRunner{
		b: b,
		validationQueue: []*roadmap.ValidationResult{
			{IsValid: false},
			{IsValid: false},
		},
	}
	e := New(b, fr, nil, 4, 2)
	ctx := context.Background()

	seedTask(t, b, "task-5")
	require.NoError(t, e.Start(ctx, "task-5", "user-1", "teach me go"))

	assert.Equal(t, 2, fr.validationCalls)
	assert.Equal(t, 1, fr.editCalls)

	cp, err := b.Checkpoints.Latest(ctx, "task-5")
	require.NoError(t, err)
	assert.True(t, cp.Suspended)
	assert.Equal(t, string(NodeHumanReview), cp.Node)
}

func TestContentPartialFailureStillCompletesTaskWithPartialStatus(t *testing.T) {
	b := newTestBrain(t)
	fr := &fakeRunner{b: b, contentStatus: roadmap.TaskPartialFailure}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-6")
	require.NoError(t, e.Start(ctx, "task-6", "user-1", "teach me go"))
	require.NoError(t, e.Resume(ctx, "task-6", nodes.DecisionApprove, ""))

	assert.Equal(t, int32(1), atomic.LoadInt32(&fr.contentCalled))
	task, err := getTask(t, b, "task-6")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskPartialFailure, task.Status)
}

func TestCancelStopsADrivingTask(t *testing.T) {
	b := newTestBrain(t)
	fr := &fakeRunner{b: b}
	e := New(b, fr, nil, 4, 3)
	ctx := context.Background()

	seedTask(t, b, "task-7")

	release := make(chan struct{})
	fr2 := &blockingRunner{fakeRunner: fr, release: release}
	e.Nodes = fr2

	done := make(chan error, 1)
	go func() { done <- e.Start(ctx, "task-7", "user-1", "teach me go") }()

	// Give Start a moment to enter IntentAnalysis, then cancel mid-flight.
	time.Sleep(20 * time.Millisecond)
	ok := e.Cancel("task-7")
	assert.True(t, ok)
	close(release)

	err := <-done
	require.NoError(t, err)

	task, getErr := getTask(t, b, "task-7")
	require.NoError(t, getErr)
	assert.Equal(t, roadmap.TaskCancelled, task.Status)
}

// blockingRunner wraps fakeRunner so IntentAnalysis blocks on release,
// giving a test a window to call Executor.Cancel before the node returns.
type blockingRunner struct {
	*fakeRunner
	release chan struct{}
}

func (b *blockingRunner) IntentAnalysis(ctx context.Context, taskID, userRequest string) (*roadmap.IntentAnalysis, string, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
	return b.fakeRunner.IntentAnalysis(ctx, taskID, userRequest)
}

func getTask(t *testing.T, b *brain.Brain, taskID string) (*roadmap.Task, error) {
	t.Helper()
	var task *roadmap.Task
	err := b.UoW.Do(context.Background(), func(ctx context.Context, repo *storage.Repo) error {
		var err error
		task, err = repo.GetTask(ctx, taskID)
		return err
	})
	return task, err
}
