package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/nodes"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// nodeRetryBackoff is the Fatality rule's in-node backoff schedule: a
// recoverable error is retried at most twice before escalating to the
// executor, waiting 1s then 2s between attempts.
var nodeRetryBackoff = []time.Duration{time.Second, 2 * time.Second}

// withRetry runs fn, retrying up to len(nodeRetryBackoff) times when the
// error it returns classifies as Recoverable. Any other kind escalates on
// the first failure.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errkind.Retryable(errkind.Classify(err)) || attempt >= len(nodeRetryBackoff) {
			return err
		}
		select {
		case <-time.After(nodeRetryBackoff[attempt]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Executor advances one task at a time through the node graph, checkpointing
// after every boundary and suspending at HumanReview. Multiple tasks run
// concurrently up to MaxActiveTasks; a task beyond that cap blocks in Start
// until a slot frees, rather than being rejected.
type Executor struct {
	Brain               *brain.Brain
	Nodes               NodeRunner
	Content             *content.Engine
	MaxValidationRounds int

	slots chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds an Executor. maxActiveTasks bounds how many tasks run their
// driving loop at once; maxValidationRounds is the MAX_ROUNDS gate of the
// Validation/HumanReview branch.
func New(b *brain.Brain, n NodeRunner, c *content.Engine, maxActiveTasks, maxValidationRounds int) *Executor {
	if maxActiveTasks < 1 {
		maxActiveTasks = 1
	}
	return &Executor{
		Brain:               b,
		Nodes:               n,
		Content:             c,
		MaxValidationRounds: maxValidationRounds,
		slots:               make(chan struct{}, maxActiveTasks),
		cancels:             make(map[string]context.CancelFunc),
	}
}

// Start drives a new task from IntentAnalysis until it suspends or reaches
// a terminal status. It blocks until a slot under MaxActiveTasks is free.
func (e *Executor) Start(ctx context.Context, taskID, userID, userRequest string) error {
	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.slots }()

	snap := &Snapshot{UserID: userID, UserRequest: userRequest}
	return e.drive(ctx, taskID, NodeIntent, snap)
}

// Resume continues a suspended task from its last checkpoint with the
// reviewer's decision. It blocks under the same MaxActiveTasks slot as Start.
func (e *Executor) Resume(ctx context.Context, taskID string, decision nodes.ReviewDecision, feedback string) error {
	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.slots }()

	cp, err := e.Brain.Checkpoints.Latest(ctx, taskID)
	if err != nil {
		return fmt.Errorf("workflow: resume: load checkpoint: %w", err)
	}
	snap, err := decodeSnapshot(cp.Snapshot)
	if err != nil {
		return fmt.Errorf("workflow: resume: decode snapshot: %w", err)
	}

	var next Node
	switch decision {
	case nodes.DecisionApprove:
		next = NodeContent
	case nodes.DecisionModify:
		next = NodeEdit
		snap.EditSource = roadmap.EditSourceHumanReview
		snap.ReviewFeedback = feedback
	default:
		return fmt.Errorf("workflow: resume: invalid decision %q", decision)
	}

	if _, err := e.Nodes.CompleteHumanReview(ctx, taskID, decision, string(next)); err != nil {
		return fmt.Errorf("workflow: resume: %w", err)
	}

	return e.drive(ctx, taskID, next, snap)
}

// Cancel signals the task's running driving loop, if any, to stop at its
// next cooperative check point. It is a no-op if the task is not currently
// driving (e.g. it is suspended in human_review_pending, or already
// terminal) — the caller is still responsible for flipping a suspended
// task's status via Brain.CancelTask directly.
func (e *Executor) Cancel(taskID string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[taskID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (e *Executor) registerCancel(taskID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancels[taskID] = cancel
	e.mu.Unlock()
}

func (e *Executor) unregisterCancel(taskID string) {
	e.mu.Lock()
	delete(e.cancels, taskID)
	e.mu.Unlock()
}

// drive runs the Step loop from node/snap until Suspend or Terminal,
// checkpointing after every boundary.
func (e *Executor) drive(ctx context.Context, taskID string, node Node, snap *Snapshot) error {
	taskCtx, cancel := context.WithCancel(ctx)
	e.registerCancel(taskID, cancel)
	defer e.unregisterCancel(taskID)
	defer cancel()

	for {
		outcome, err := e.Step(taskCtx, taskID, node, snap)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				_ = e.Brain.CancelTask(ctx, taskID)
				return nil
			}
			_ = e.Brain.FailTask(ctx, taskID, err.Error())
			return err
		}

		switch outcome.kind {
		case outcomeContinue:
			if _, err := e.Brain.Checkpoints.Save(ctx, taskID, string(outcome.next), false, outcome.snapshot.encode()); err != nil {
				return fmt.Errorf("workflow: checkpoint: %w", err)
			}
			node, snap = outcome.next, outcome.snapshot
		case outcomeSuspend:
			if _, err := e.Brain.Checkpoints.Save(ctx, taskID, string(node), true, outcome.snapshot.encode()); err != nil {
				return fmt.Errorf("workflow: checkpoint: %w", err)
			}
			return nil
		case outcomeTerminal:
			return nil
		}
	}
}

// Step advances a single node. Exported so tests can drive one step at a
// time without running the full loop.
func (e *Executor) Step(ctx context.Context, taskID string, node Node, snap *Snapshot) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	switch node {
	case NodeIntent:
		return e.stepIntent(ctx, taskID, snap)
	case NodeCurriculum:
		return e.stepCurriculum(ctx, taskID, snap)
	case NodeValidation:
		return e.stepValidation(ctx, taskID, snap)
	case NodeEdit:
		return e.stepEdit(ctx, taskID, snap)
	case NodeHumanReview:
		return e.stepHumanReview(ctx, taskID, snap)
	case NodeContent:
		return e.stepContent(ctx, taskID, snap)
	default:
		return Outcome{}, fmt.Errorf("workflow: unknown node %q", node)
	}
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	return &c
}

func (e *Executor) stepIntent(ctx context.Context, taskID string, snap *Snapshot) (Outcome, error) {
	exit, err := e.Brain.NodeExecution(ctx, taskID, string(NodeIntent))
	if err != nil {
		return Outcome{}, err
	}
	var ia *roadmap.IntentAnalysis
	var roadmapID string
	err = withRetry(ctx, func() error {
		var callErr error
		ia, roadmapID, callErr = e.Nodes.IntentAnalysis(ctx, taskID, snap.UserRequest)
		return callErr
	})
	exit(err)
	if err != nil {
		return Outcome{}, err
	}

	next := snap.clone()
	next.IntentAnalysis = ia
	next.RoadmapID = roadmapID
	return Continue(NodeCurriculum, next), nil
}

func (e *Executor) stepCurriculum(ctx context.Context, taskID string, snap *Snapshot) (Outcome, error) {
	exit, err := e.Brain.NodeExecution(ctx, taskID, string(NodeCurriculum))
	if err != nil {
		return Outcome{}, err
	}
	var rm *roadmap.Roadmap
	err = withRetry(ctx, func() error {
		var callErr error
		rm, callErr = e.Nodes.CurriculumDesign(ctx, taskID, snap.RoadmapID, snap.UserID, snap.IntentAnalysis)
		return callErr
	})
	exit(err)
	if err != nil {
		return Outcome{}, err
	}

	next := snap.clone()
	next.Roadmap = rm
	return Continue(NodeValidation, next), nil
}

func (e *Executor) stepValidation(ctx context.Context, taskID string, snap *Snapshot) (Outcome, error) {
	exit, err := e.Brain.NodeExecution(ctx, taskID, string(NodeValidation))
	if err != nil {
		return Outcome{}, err
	}
	round := snap.ValidationRound + 1
	var v *roadmap.ValidationResult
	err = withRetry(ctx, func() error {
		var callErr error
		v, callErr = e.Nodes.StructureValidation(ctx, taskID, snap.Roadmap, round)
		return callErr
	})
	exit(err)
	if err != nil {
		return Outcome{}, err
	}

	next := snap.clone()
	next.ValidationRound = round
	next.Validation = v

	if v.IsValid || round >= e.MaxValidationRounds {
		return Continue(NodeHumanReview, next), nil
	}
	next.EditSource = roadmap.EditSourceValidationFailed
	return Continue(NodeEdit, next), nil
}

func (e *Executor) stepEdit(ctx context.Context, taskID string, snap *Snapshot) (Outcome, error) {
	exit, err := e.Brain.NodeExecution(ctx, taskID, string(NodeEdit))
	if err != nil {
		return Outcome{}, err
	}
	var issues []roadmap.ValidationIssue
	if snap.Validation != nil {
		issues = snap.Validation.Issues
	}
	var rm *roadmap.Roadmap
	err = withRetry(ctx, func() error {
		var callErr error
		rm, _, callErr = e.Nodes.RoadmapEdit(ctx, taskID, snap.Roadmap, snap.EditSource, issues, snap.ReviewFeedback)
		return callErr
	})
	exit(err)
	if err != nil {
		return Outcome{}, err
	}

	next := snap.clone()
	next.Roadmap = rm
	return Continue(NodeValidation, next), nil
}

func (e *Executor) stepHumanReview(ctx context.Context, taskID string, snap *Snapshot) (Outcome, error) {
	exit, err := e.Brain.NodeExecution(ctx, taskID, string(NodeHumanReview))
	if err != nil {
		return Outcome{}, err
	}
	token := encodeResumeToken(taskID)
	err = e.Nodes.StartHumanReview(ctx, taskID, token)
	exit(err)
	if err != nil {
		return Outcome{}, err
	}

	return Suspend("awaiting_human_review", snap.clone()), nil
}

func (e *Executor) stepContent(ctx context.Context, taskID string, snap *Snapshot) (Outcome, error) {
	exit, err := e.Brain.NodeExecution(ctx, taskID, string(NodeContent))
	if err != nil {
		return Outcome{}, err
	}
	err = e.Nodes.ContentGeneration(ctx, taskID, snap.RoadmapID, e.Content, snap.Roadmap)
	exit(err)
	if err != nil {
		return Outcome{}, err
	}

	// ContentGeneration already called Brain.CompleteTask with the right
	// terminal status; this Terminal outcome only stops the drive loop.
	return Terminal(roadmap.TaskCompleted), nil
}
