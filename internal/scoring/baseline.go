package scoring

import (
	"strings"

	"github.com/sentra-sec/sentra/api/schemas"
)

// severityBaseline maps event severity to its baseline contribution.
var severityBaseline = map[schemas.Severity]float64{
	schemas.SeverityCritical: 0.9,
	schemas.SeverityHigh:     0.7,
	schemas.SeverityMedium:   0.4,
	schemas.SeverityLow:      0.2,
}

const defaultSeverityBaseline = 0.2

// highRiskEventTypes is the fixed list of event types that carry an
// inherent-risk bonus on top of their severity.
var highRiskEventTypes = map[string]struct{}{
	"process_creation":      {},
	"credential_access":     {},
	"privilege_escalation":  {},
	"lateral_movement":      {},
	"data_exfiltration":     {},
	"persistence_installed": {},
}

const (
	highRiskTypeBonus     = 0.1
	criticalTechBonus     = 0.3
	perTechniqueBonus     = 0.1
	maxNonCriticalTechCap = 0.2
)

// baselineComponent derives the severity-and-technique driven floor of the
// score.
func (e *Engine) baselineComponent(in schemas.ScoreInput) float64 {
	score, ok := severityBaseline[in.Severity]
	if !ok {
		score = defaultSeverityBaseline
	}

	if _, high := highRiskEventTypes[strings.ToLower(in.EventType)]; high {
		score += highRiskTypeBonus
	}

	if len(in.Techniques) > 0 {
		if schemas.AnyCriticalTechnique(in.Techniques) {
			score += criticalTechBonus
		} else {
			bonus := float64(len(in.Techniques)) * perTechniqueBonus
			if bonus > maxNonCriticalTechCap {
				bonus = maxNonCriticalTechCap
			}
			score += bonus
		}
	}

	return clamp01(score)
}
