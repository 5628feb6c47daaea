package schemas

import "errors"

// -- Error Taxonomy --
//
// Structural failures surface to the caller; local, recoverable failures
// (lookups, single capability calls) degrade to documented defaults at the
// call site. Components wrap these sentinels with fmt.Errorf("...: %w", ...)
// so callers can classify with errors.Is.

var (
	// ErrInvalidScenario rejects malformed orchestration input before any
	// scheduling happens.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrCapabilityUnavailable marks a capability invocation that failed
	// outright. Recorded on the task, never aborts the session.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrCapabilityTimeout marks a capability invocation that exceeded its
	// deadline. Recorded on the task, never aborts the session.
	ErrCapabilityTimeout = errors.New("capability timeout")

	// ErrSchedulingDeadlock is raised when tasks remain PENDING, none are
	// ready, and nothing is in flight. Raised explicitly instead of
	// spinning forever.
	ErrSchedulingDeadlock = errors.New("scheduling deadlock")

	// ErrPersistence marks a failed write to the durable store. Always
	// propagated; the system does not silently lose writes.
	ErrPersistence = errors.New("persistence failure")

	// ErrRetrieval marks a knowledge retrieval failure. Absorbed inside
	// scoring as an empty result set.
	ErrRetrieval = errors.New("retrieval failure")

	// ErrReputationLookup marks a reputation or profile lookup failure.
	// Absorbed inside enrichment as a neutral default.
	ErrReputationLookup = errors.New("reputation lookup failure")

	// ErrSessionBusy rejects a re-entrant RunSession for a session id that
	// already has a run in flight.
	ErrSessionBusy = errors.New("session already running")
)
