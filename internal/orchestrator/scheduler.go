package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sentra-sec/sentra/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// taskOutcome is the message a dispatched worker posts back to the
// scheduling loop.
type taskOutcome struct {
	taskID     string
	generation uint64
	result     *schemas.TaskResult
	err        error
}

// RunSession drives the session's task graph to a terminal state: ready
// tasks (PENDING with all dependencies COMPLETED) dispatch concurrently up
// to the parallelism bound, completions fold results into the shared
// context, follow-ups join the graph, and the loop ends when no task can
// make further progress.
//
// Individual task failures never abort the loop; they surface through task
// status and the final session status. Only structural failures return an
// error: a busy session, a dependency graph that can make no progress
// without a failed task explaining it, or a persistence failure.
func (o *Orchestrator) RunSession(ctx context.Context, session *schemas.Session) (*schemas.Session, error) {
	r, err := o.acquire(session.ID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", session.ID, err)
	}
	defer o.release(session.ID)

	sem := semaphore.NewWeighted(int64(o.maxParallel()))
	outcomes := make(chan taskOutcome)
	inFlight := 0

	// Workers block sending on the unbuffered channel, so every return
	// path must receive whatever is still in flight. Drained results are
	// never applied.
	defer func() {
		for inFlight > 0 {
			<-outcomes
			inFlight--
		}
	}()

	for {
		generation, aborted := o.snapshot(r)
		if aborted {
			if err := o.cancelPending(ctx, session); err != nil {
				return nil, err
			}
			break
		}

		ready := readyTasks(session)
		for _, candidate := range ResolveConflicts(ready) {
			if !sem.TryAcquire(1) {
				break
			}
			task := session.TaskByID(candidate.ID)
			if err := o.dispatch(ctx, task, session, generation, sem, outcomes); err != nil {
				sem.Release(1)
				return nil, err
			}
			inFlight++
		}

		if inFlight == 0 {
			if done, err := o.checkProgress(session); done {
				break
			} else if err != nil {
				return nil, err
			}
			continue
		}

		outcome := <-outcomes
		inFlight--

		currentGen, _ := o.snapshot(r)
		if outcome.generation != currentGen {
			continue
		}
		if err := o.applyOutcome(ctx, session, outcome); err != nil {
			return nil, err
		}
	}

	o.finalize(session)
	if err := o.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persisting session %s: %w", session.ID, err)
	}

	o.log.Info("Session finished",
		zap.String("session_id", session.ID),
		zap.String("status", string(session.Status)),
	)
	return session, nil
}

func (o *Orchestrator) maxParallel() int {
	if o.cfg.MaxParallel > 0 {
		return o.cfg.MaxParallel
	}
	return 3
}

// readyTasks returns the PENDING tasks whose dependencies have all reached
// COMPLETED.
func readyTasks(session *schemas.Session) []schemas.Task {
	var ready []schemas.Task
	for _, t := range session.Tasks {
		if t.Status != schemas.TaskPending {
			continue
		}
		if dependenciesComplete(session, t) {
			ready = append(ready, t)
		}
	}
	return ready
}

func dependenciesComplete(session *schemas.Session, task schemas.Task) bool {
	for _, depID := range task.DependsOn {
		dep := session.TaskByID(depID)
		if dep == nil || dep.Status != schemas.TaskCompleted {
			return false
		}
	}
	return true
}

// dispatch marks the task IN_PROGRESS, persists the transition and launches
// the worker goroutine. Workers touch nothing but their own task copy.
func (o *Orchestrator) dispatch(ctx context.Context, task *schemas.Task, session *schemas.Session, generation uint64, sem *semaphore.Weighted, outcomes chan<- taskOutcome) error {
	started := o.now()
	task.Status = schemas.TaskInProgress
	task.StartedAt = &started
	if err := o.tasks.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persisting task %s: %w", task.ID, err)
	}

	input := task.Input
	if enriched := contextDigest(mergeContext(task.Context, session.SharedContext)); enriched != "" {
		input = input + "\n\nFindings so far:\n" + enriched
	}

	capability := task.Capability
	taskID := task.ID
	sessionID := task.SessionID

	o.log.Debug("Task dispatched",
		zap.String("task_id", taskID),
		zap.String("capability", string(capability)),
	)

	go func() {
		defer sem.Release(1)

		callCtx := ctx
		if o.cfg.CapabilityTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.CapabilityTimeout)
			defer cancel()
		}

		output, err := o.executor.Invoke(callCtx, capability, sessionID, input)
		if err != nil {
			outcomes <- taskOutcome{taskID: taskID, generation: generation, err: err}
			return
		}
		outcomes <- taskOutcome{taskID: taskID, generation: generation, result: parseTaskResult(output)}
	}()
	return nil
}

// applyOutcome folds one worker result back into the session and persists
// the transition.
func (o *Orchestrator) applyOutcome(ctx context.Context, session *schemas.Session, outcome taskOutcome) error {
	task := session.TaskByID(outcome.taskID)
	if task == nil || task.Status.Terminal() {
		return nil
	}
	completed := o.now()
	task.CompletedAt = &completed

	if outcome.err != nil {
		task.Status = schemas.TaskFailed
		task.Error = outcome.err.Error()
		o.log.Warn("Task failed",
			zap.String("task_id", task.ID),
			zap.String("capability", string(task.Capability)),
			zap.Error(outcome.err),
		)
		return o.saveTaskAndSession(ctx, session, task)
	}

	task.Status = schemas.TaskCompleted
	task.Result = outcome.result
	session.SharedContext[o.contextKey(session, task.Capability)] = outcome.result.Output

	if err := o.appendFollowUps(ctx, session, task, outcome.result.FollowUps); err != nil {
		return err
	}
	return o.saveTaskAndSession(ctx, session, task)
}

func (o *Orchestrator) saveTaskAndSession(ctx context.Context, session *schemas.Session, task *schemas.Task) error {
	if err := o.tasks.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persisting task %s: %w", task.ID, err)
	}
	if err := o.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("persisting session %s: %w", session.ID, err)
	}
	return nil
}

// contextKey derives the shared-context key for a capability's result. The
// first result for a capability claims the bare key; later results from
// follow-up tasks get a numbered follow-up suffix so no writer ever
// overwrites another's key.
func (o *Orchestrator) contextKey(session *schemas.Session, capability schemas.Capability) string {
	base := strings.ToLower(string(capability))
	if _, taken := session.SharedContext[base]; !taken {
		return base
	}
	for n := 1; ; n++ {
		key := fmt.Sprintf("%s.followup.%d", base, n)
		if _, taken := session.SharedContext[key]; !taken {
			return key
		}
	}
}

// appendFollowUps adds the follow-up tasks a completed task requested. A
// follow-up depends on its originating task, which is already COMPLETED, so
// no cycle can form. Unknown capabilities are skipped with a warning.
func (o *Orchestrator) appendFollowUps(ctx context.Context, session *schemas.Session, origin *schemas.Task, followUps []schemas.FollowUpRequest) error {
	for _, fu := range followUps {
		if !fu.Capability.Valid() {
			o.log.Warn("Follow-up with unknown capability skipped",
				zap.String("task_id", origin.ID),
				zap.String("capability", string(fu.Capability)),
			)
			continue
		}
		task := schemas.Task{
			ID:         o.newID(),
			SessionID:  session.ID,
			Capability: fu.Capability,
			Priority:   fu.Priority,
			Input:      fu.Input,
			DependsOn:  []string{origin.ID},
			Status:     schemas.TaskPending,
			CreatedAt:  o.now(),
		}
		session.Tasks = append(session.Tasks, task)
		if err := o.tasks.SaveTask(ctx, &task); err != nil {
			return fmt.Errorf("persisting task %s: %w", task.ID, err)
		}
		o.log.Info("Follow-up task appended",
			zap.String("task_id", task.ID),
			zap.String("origin_task_id", origin.ID),
			zap.String("capability", string(fu.Capability)),
		)
	}
	return nil
}

// checkProgress decides, with nothing ready and nothing in flight, whether
// the loop is finished or stuck. PENDING tasks explained by a FAILED
// ancestor are normal exhaustion; PENDING tasks with no failed ancestor
// mean the graph itself cannot be satisfied.
func (o *Orchestrator) checkProgress(session *schemas.Session) (done bool, err error) {
	stuck := false
	for _, t := range session.Tasks {
		if t.Status != schemas.TaskPending {
			continue
		}
		if !blockedByFailure(session, t) {
			stuck = true
		}
	}
	if stuck {
		return false, fmt.Errorf("session %s: %w", session.ID, schemas.ErrSchedulingDeadlock)
	}
	return true, nil
}

// blockedByFailure reports whether the task's dependency closure contains a
// FAILED task, which permanently explains why it can never run. Unknown
// dependency ids do not count: a graph referencing a task that does not
// exist is unsatisfiable, not failure-explained, and must surface as a
// scheduling deadlock.
func blockedByFailure(session *schemas.Session, task schemas.Task) bool {
	seen := make(map[string]struct{})
	queue := append([]string(nil), task.DependsOn...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		dep := session.TaskByID(id)
		if dep == nil {
			continue
		}
		if dep.Status == schemas.TaskFailed {
			return true
		}
		queue = append(queue, dep.DependsOn...)
	}
	return false
}

// cancelPending fails every PENDING task with a cancellation error after an
// abort. In-flight tasks are left to their workers; their results are
// discarded by the generation check.
func (o *Orchestrator) cancelPending(ctx context.Context, session *schemas.Session) error {
	cancelled := o.now()
	for i := range session.Tasks {
		t := &session.Tasks[i]
		if t.Status.Terminal() {
			continue
		}
		t.Status = schemas.TaskFailed
		t.Error = "session aborted"
		t.CompletedAt = &cancelled
		if err := o.tasks.SaveTask(ctx, t); err != nil {
			return fmt.Errorf("persisting task %s: %w", t.ID, err)
		}
	}
	return nil
}

// finalize stamps the terminal session state and generates the summary.
func (o *Orchestrator) finalize(session *schemas.Session) {
	completed := o.now()
	session.CompletedAt = &completed
	session.Status = schemas.SessionCompleted
	for _, t := range session.Tasks {
		if t.Status != schemas.TaskCompleted {
			session.Status = schemas.SessionFailed
			break
		}
	}
	session.Summary = buildSummary(session)
}

// parseTaskResult interprets a capability's textual output. Structured
// JSON results pass through; anything else becomes a plain-text result
// with a conservative confidence.
func parseTaskResult(output string) *schemas.TaskResult {
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "{") {
		var result schemas.TaskResult
		if err := json.Unmarshal([]byte(trimmed), &result); err == nil && result.Output != "" {
			return &result
		}
	}
	return &schemas.TaskResult{Output: trimmed, Confidence: 0.7}
}

// mergeContext overlays session findings onto the task's own seeded
// context. Findings win on key collision.
func mergeContext(taskCtx, shared map[string]string) map[string]string {
	if len(taskCtx) == 0 {
		return shared
	}
	merged := make(map[string]string, len(taskCtx)+len(shared))
	for k, v := range taskCtx {
		merged[k] = v
	}
	for k, v := range shared {
		merged[k] = v
	}
	return merged
}

// contextDigest renders the shared context as prompt-ready lines, capped so
// early findings cannot crowd out the task's own input.
func contextDigest(shared map[string]string) string {
	if len(shared) == 0 {
		return ""
	}
	keys := make([]string, 0, len(shared))
	for k := range shared {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := shared[k]
		if len(v) > maxContextValueLen {
			v = v[:maxContextValueLen] + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", k, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

const maxContextValueLen = 500
