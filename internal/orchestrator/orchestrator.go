// Package orchestrator plans and runs capability collaboration sessions:
// scenario decomposition, dependency-aware bounded-parallel scheduling,
// conflict resolution and health probing.
package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
)

// Orchestrator owns session planning and execution. Safe for concurrent use
// across sessions; per-session execution is serialized by a reentrancy
// guard.
type Orchestrator struct {
	executor schemas.CapabilityExecutor
	sessions schemas.SessionStore
	tasks    schemas.TaskStore
	cfg      config.OrchestratorConfig
	log      *zap.Logger
	now      func() time.Time
	newID    func() string

	mu     sync.Mutex
	active map[string]*run
}

// run tracks one in-flight RunSession. The generation counter invalidates
// in-flight task results after an abort: results dispatched under an older
// generation are discarded at the scan boundary.
type run struct {
	generation uint64
	aborted    bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock fixes the orchestrator's notion of now. Test use.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator fixes session and task ID generation. Test use.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// New wires an Orchestrator.
func New(
	executor schemas.CapabilityExecutor,
	sessions schemas.SessionStore,
	tasks schemas.TaskStore,
	cfg config.OrchestratorConfig,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		executor: executor,
		sessions: sessions,
		tasks:    tasks,
		cfg:      cfg,
		log:      logger.Named("orchestrator"),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
		active:   make(map[string]*run),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Abort requests cancellation of an in-flight session run. PENDING tasks
// are failed at the next scan boundary; results of already dispatched tasks
// are discarded. Aborting a session that is not running is a no-op.
func (o *Orchestrator) Abort(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.active[sessionID]; ok {
		r.aborted = true
		r.generation++
		o.log.Info("Session abort requested", zap.String("session_id", sessionID))
	}
}

// acquire registers a run for the session, enforcing the one-runner-per-
// session rule.
func (o *Orchestrator) acquire(sessionID string) (*run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[sessionID]; busy {
		return nil, schemas.ErrSessionBusy
	}
	r := &run{}
	o.active[sessionID] = r
	return r, nil
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, sessionID)
}

// snapshot reads the run state under the lock.
func (o *Orchestrator) snapshot(r *run) (generation uint64, aborted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return r.generation, r.aborted
}
