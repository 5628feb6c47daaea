package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

// planRule maps scenario keywords to the capability they call for, with the
// priority that capability's tasks carry.
type planRule struct {
	capability schemas.Capability
	priority   schemas.Priority
	keywords   []string
	objective  string
}

// planRules is the scenario decomposition table, evaluated in order. The
// reporting capability is not listed here: it is always appended last and
// depends on every other planned task.
var planRules = []planRule{
	{
		capability: schemas.CapabilityIncidentPlanning,
		priority:   schemas.PriorityCritical,
		keywords:   []string{"incident", "breach", "compromise", "ransomware", "outage"},
		objective:  "Produce a prioritized incident response plan",
	},
	{
		capability: schemas.CapabilityThreatHunting,
		priority:   schemas.PriorityHigh,
		keywords:   []string{"hunt", "suspicious", "anomal", "lateral", "beacon", "persistence", "malware"},
		objective:  "Hunt for related malicious activity across telemetry",
	},
	{
		capability: schemas.CapabilityIntelCorrelation,
		priority:   schemas.PriorityHigh,
		keywords:   []string{"intel", "campaign", "apt", "ioc", "indicator", "attribution", "actor"},
		objective:  "Correlate observables against known campaigns and actors",
	},
	{
		capability: schemas.CapabilityVulnTriage,
		priority:   schemas.PriorityMedium,
		keywords:   []string{"vulnerab", "cve", "patch", "exploit", "exposure"},
		objective:  "Triage affected vulnerabilities and exposure",
	},
	{
		capability: schemas.CapabilityForensics,
		priority:   schemas.PriorityHigh,
		keywords:   []string{"forensic", "artifact", "memory", "disk", "timeline", "evidence"},
		objective:  "Collect and analyze forensic artifacts",
	},
	{
		capability: schemas.CapabilityAnomalyScoring,
		priority:   schemas.PriorityMedium,
		keywords:   []string{"score", "risk", "baseline", "behavior", "deviation"},
		objective:  "Score the scenario's entities for behavioral risk",
	},
}

// defaultCapabilities handle scenarios matching no rule: a generic
// investigation still gets hunting plus intelligence correlation.
var defaultCapabilities = []schemas.Capability{
	schemas.CapabilityThreatHunting,
	schemas.CapabilityIntelCorrelation,
}

// PlanSession decomposes a scenario into one task per required capability,
// wires the reporting task to depend on all others, and persists the
// planned session. An empty scenario is rejected before any planning.
func (o *Orchestrator) PlanSession(ctx context.Context, scenario string, initial map[string]string) (*schemas.Session, error) {
	scenario = strings.TrimSpace(scenario)
	if scenario == "" {
		return nil, fmt.Errorf("%w: scenario text is empty", schemas.ErrInvalidScenario)
	}

	matched := matchCapabilities(scenario)

	session := &schemas.Session{
		ID:            o.newID(),
		Scenario:      scenario,
		SharedContext: make(map[string]string, len(initial)),
		Status:        schemas.SessionActive,
		CreatedAt:     o.now(),
	}
	for k, v := range initial {
		session.SharedContext[k] = v
	}

	var dependencyIDs []string
	for _, rule := range matched {
		task := schemas.Task{
			ID:         o.newID(),
			SessionID:  session.ID,
			Capability: rule.capability,
			Priority:   rule.priority,
			Input:      fmt.Sprintf("%s.\nScenario: %s", rule.objective, scenario),
			Context:    cloneContext(initial),
			Status:     schemas.TaskPending,
			CreatedAt:  o.now(),
		}
		session.Tasks = append(session.Tasks, task)
		session.Participants = append(session.Participants, rule.capability)
		dependencyIDs = append(dependencyIDs, task.ID)
	}

	report := schemas.Task{
		ID:         o.newID(),
		SessionID:  session.ID,
		Capability: schemas.CapabilityReporting,
		Priority:   schemas.PriorityMedium,
		Input:      fmt.Sprintf("Synthesize all findings into a final report.\nScenario: %s", scenario),
		Context:    cloneContext(initial),
		DependsOn:  dependencyIDs,
		Status:     schemas.TaskPending,
		CreatedAt:  o.now(),
	}
	session.Tasks = append(session.Tasks, report)
	session.Participants = append(session.Participants, schemas.CapabilityReporting)

	if err := o.persistSession(ctx, session); err != nil {
		return nil, err
	}

	o.log.Info("Session planned",
		zap.String("session_id", session.ID),
		zap.String("scenario", scenario),
		zap.Int("tasks", len(session.Tasks)),
	)
	return session, nil
}

// cloneContext copies the operator-supplied context so tasks never share a
// mutable map with the session or each other.
func cloneContext(initial map[string]string) map[string]string {
	if len(initial) == 0 {
		return nil
	}
	clone := make(map[string]string, len(initial))
	for k, v := range initial {
		clone[k] = v
	}
	return clone
}

// matchCapabilities applies the rule table to the scenario text. Rules
// match on lowercase substring presence; the result preserves table order
// so planning is deterministic.
func matchCapabilities(scenario string) []planRule {
	text := strings.ToLower(scenario)

	var matched []planRule
	for _, rule := range planRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, rule)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}

	fallback := make([]planRule, 0, len(defaultCapabilities))
	for _, c := range defaultCapabilities {
		for _, rule := range planRules {
			if rule.capability == c {
				fallback = append(fallback, rule)
				break
			}
		}
	}
	return fallback
}

// persistSession writes the session record and each task record. Store
// failures surface to the caller.
func (o *Orchestrator) persistSession(ctx context.Context, session *schemas.Session) error {
	if err := o.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("persisting session %s: %w", session.ID, err)
	}
	for i := range session.Tasks {
		if err := o.tasks.SaveTask(ctx, &session.Tasks[i]); err != nil {
			return fmt.Errorf("persisting task %s: %w", session.Tasks[i].ID, err)
		}
	}
	return nil
}

// ResolveConflicts orders tasks contending for execution slots: priority
// descending, creation time ascending within a tier. Pure and stable; the
// input slice is not mutated.
func ResolveConflicts(tasks []schemas.Task) []schemas.Task {
	out := make([]schemas.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
