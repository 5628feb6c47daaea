package schemas

import (
	"context"
	"time"
)

// -- External Collaborator Interfaces --
//
// Every external system the core touches is expressed as an interface here
// so that production wiring can plug in real services while tests supply
// deterministic fakes. None of these implementations live in this package.

// CapabilityExecutor invokes a named reasoning capability with a textual
// prompt and returns its textual output. Implementations must classify
// failures as ErrCapabilityTimeout or ErrCapabilityUnavailable.
type CapabilityExecutor interface {
	Invoke(ctx context.Context, capability Capability, sessionID, input string) (string, error)
}

// RetrievalFilters narrows a knowledge retrieval query.
type RetrievalFilters struct {
	MinConfidence float64
	Tags          []string
	Since         time.Time
	Until         time.Time
}

// Document is one ranked result from the knowledge retrieval service.
type Document struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Score      float64   `json:"score"`
}

// KnowledgeRetriever queries the external document index. Callers treat a
// retrieval failure as an empty result set.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string, filters RetrievalFilters, maxResults int) ([]Document, error)
}

// SessionStore persists sessions with per-record atomicity.
type SessionStore interface {
	SaveSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
}

// TaskStore persists tasks with per-record atomicity.
type TaskStore interface {
	SaveTask(ctx context.Context, task *Task) error
	TasksBySession(ctx context.Context, sessionID string) ([]Task, error)
}

// EventStore persists security events and serves the correlation window
// query (events sharing a source address inside a time range).
type EventStore interface {
	SaveEvent(ctx context.Context, event *SecurityEvent) error
	EventsBySourceAddr(ctx context.Context, sourceAddr string, from, to time.Time) ([]SecurityEvent, error)
}

// EventChannel publishes processed results downstream. Publishing is
// fire-and-forget; implementations log failures rather than returning them
// to the processing path.
type EventChannel interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// ReputationCategory is the verdict of an IP reputation lookup.
type ReputationCategory string

const (
	ReputationMalicious  ReputationCategory = "MALICIOUS"
	ReputationSuspicious ReputationCategory = "SUSPICIOUS"
	ReputationNeutral    ReputationCategory = "NEUTRAL"
)

// IPReputation is the best-effort result of a reputation lookup. Lookups
// that fail degrade to the neutral category.
type IPReputation struct {
	Category ReputationCategory `json:"category"`
}

// ReputationClient performs best-effort IP reputation lookups.
type ReputationClient interface {
	LookupIP(ctx context.Context, ip string) (IPReputation, error)
}

// UserProfile is the best-effort result of a user behavior lookup.
type UserProfile struct {
	RiskScore        float64  `json:"risk_score"`
	NormalLoginHours []int    `json:"normal_login_hours,omitempty"`
	NormalLocations  []string `json:"normal_locations,omitempty"`
	NormalDevices    []string `json:"normal_devices,omitempty"`
	NormalAccess     []string `json:"normal_access,omitempty"`
	TrustedSource    bool     `json:"trusted_source"`
}

// UserProfileClient performs best-effort user behavior lookups.
type UserProfileClient interface {
	LookupUser(ctx context.Context, userID string) (UserProfile, error)
}
