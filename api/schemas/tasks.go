package schemas

import "time"

// -- Task Schemas --

// TaskStatus tracks a task through its lifecycle. Transitions are
// PENDING -> IN_PROGRESS -> {COMPLETED | FAILED}; the orchestrator is the
// only writer.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// TaskResult carries the structured output of a completed task.
type TaskResult struct {
	Output          string            `json:"output"`
	Confidence      float64           `json:"confidence"`
	Sources         []string          `json:"sources,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	FollowUps       []FollowUpRequest `json:"follow_ups,omitempty"`
}

// FollowUpRequest asks the orchestrator to append a new task to the running
// session. Follow-ups become eligible in later scheduling rounds.
type FollowUpRequest struct {
	Capability Capability `json:"capability"`
	Priority   Priority   `json:"priority"`
	Input      string     `json:"input"`
}

// Task is one unit of work assigned to a single capability.
//
// A task may enter IN_PROGRESS only once every id in DependsOn has reached
// COMPLETED. Dependency cycles are prevented by construction: the planner
// only wires dependencies from earlier tasks to later ones, and follow-up
// tasks may only depend on tasks that already exist.
type Task struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	Capability  Capability        `json:"capability"`
	Priority    Priority          `json:"priority"`
	Input       string            `json:"input"`
	Context     map[string]string `json:"context,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	Status      TaskStatus        `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Result      *TaskResult       `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
}
