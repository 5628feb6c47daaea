package schemas

import "time"

// -- Session Schemas --

// SessionStatus tracks an orchestration run. ACTIVE -> {COMPLETED | FAILED}.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
)

// Session is one orchestration run against a scenario.
//
// SharedContext is append-only with single-writer-per-key discipline: only
// the scheduler goroutine mutates it, and each completed task contributes
// under its own capability-derived key. The session reaches COMPLETED only
// if every task reached COMPLETED; a FAILED task with no further progress
// possible moves the session to FAILED with partial results preserved.
type Session struct {
	ID            string            `json:"id"`
	Scenario      string            `json:"scenario"`
	Participants  []Capability      `json:"participants"`
	Tasks         []Task            `json:"tasks"`
	SharedContext map[string]string `json:"shared_context"`
	Status        SessionStatus     `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	Summary       string            `json:"summary,omitempty"`
}

// TaskByID returns a pointer into the session's task slice, or nil when the
// id is unknown. Callers must not retain the pointer across appends.
func (s *Session) TaskByID(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}
