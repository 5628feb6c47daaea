package scoring

import (
	"fmt"

	"github.com/sentra-sec/sentra/api/schemas"
)

// Component thresholds above which a risk factor is emitted.
const (
	behavioralFactorThreshold  = 0.5
	threatIntelFactorThreshold = 0.6
	temporalFactorThreshold    = 0.3
	networkFactorThreshold     = 0.4
	technicalFactorMinTechs    = 2
	technicalImpactPerTech     = 0.2
)

// riskFactors translates component strength into explicit evidence items.
func (e *Engine) riskFactors(in schemas.ScoreInput, c schemas.ScoreComponents) []schemas.RiskFactor {
	var factors []schemas.RiskFactor

	if c.Behavioral > behavioralFactorThreshold {
		factors = append(factors, schemas.RiskFactor{
			Type:        schemas.RiskBehavioral,
			Description: "User activity deviates strongly from the established baseline",
			Impact:      c.Behavioral,
			Confidence:  0.8,
			Evidence:    []string{fmt.Sprintf("behavioral anomaly score %.2f", c.Behavioral)},
		})
	}
	if c.ThreatIntel > threatIntelFactorThreshold {
		factors = append(factors, schemas.RiskFactor{
			Type:        schemas.RiskThreatIntel,
			Description: "Observables match high-confidence threat intelligence",
			Impact:      c.ThreatIntel,
			Confidence:  0.9,
			Evidence:    indicatorEvidence(in.Indicators),
		})
	}
	if c.Temporal > temporalFactorThreshold {
		factors = append(factors, schemas.RiskFactor{
			Type:        schemas.RiskTemporal,
			Description: "Activity occurred at a time favored by attackers",
			Impact:      c.Temporal,
			Confidence:  0.7,
		})
	}
	if c.Network > networkFactorThreshold {
		factors = append(factors, schemas.RiskFactor{
			Type:        schemas.RiskNetwork,
			Description: "Network observables carry known-bad characteristics",
			Impact:      c.Network,
			Confidence:  0.8,
		})
	}
	if n := len(in.Techniques); n > technicalFactorMinTechs {
		impact := float64(n) * technicalImpactPerTech
		if impact > 1.0 {
			impact = 1.0
		}
		factors = append(factors, schemas.RiskFactor{
			Type:        schemas.RiskTechnical,
			Description: fmt.Sprintf("%d distinct attack techniques observed in one event", n),
			Impact:      impact,
			Confidence:  0.85,
			Evidence:    in.Techniques,
		})
	}
	return factors
}

func indicatorEvidence(indicators []string) []string {
	if len(indicators) == 0 {
		return nil
	}
	out := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		out = append(out, "matched indicator "+ind)
	}
	return out
}

const lowRiskBaselineCeiling = 0.3

// mitigatingFactors lists the reasons this activity may be benign.
func (e *Engine) mitigatingFactors(in schemas.ScoreInput) []string {
	var out []string
	if in.Temporal != nil && e.withinBusinessHours(in.Temporal.Timestamp) {
		out = append(out, "Activity occurred during regular business hours")
	}
	if in.Network != nil && in.Network.TrustedNet {
		out = append(out, "Traffic originated from a trusted network segment")
	}
	if in.Severity == schemas.SeverityLow {
		out = append(out, "Source reported the event at LOW severity")
	}
	if in.Behavioral != nil && in.Behavioral.BaselineRiskScore < lowRiskBaselineCeiling {
		out = append(out, "User has an established low-risk behavioral baseline")
	}
	return out
}

// Recommendation tiers keyed on the overall score.
const (
	tierImmediate = 0.8
	tierUrgent    = 0.6
	tierRoutine   = 0.4
)

// factorRecommendations maps each risk factor type to its follow-up action.
var factorRecommendations = map[schemas.RiskFactorType]string{
	schemas.RiskBehavioral:  "Review the user's recent session history and verify account ownership",
	schemas.RiskThreatIntel: "Cross-reference matched indicators against current campaign reporting",
	schemas.RiskTemporal:    "Confirm whether scheduled maintenance explains the off-hours activity",
	schemas.RiskNetwork:     "Capture and inspect traffic to the flagged destination",
	schemas.RiskTechnical:   "Map the observed techniques against coverage of existing detections",
}

// recommendations returns the severity-tiered base set plus one
// recommendation per distinct risk factor type, duplicates removed.
func (e *Engine) recommendations(overall float64, factors []schemas.RiskFactor) []string {
	var recs []string
	switch {
	case overall >= tierImmediate:
		recs = append(recs,
			"Immediate investigation required",
			"Isolate the affected host pending triage",
		)
	case overall >= tierUrgent:
		recs = append(recs,
			"Escalate to the on-call analyst for same-day review",
		)
	case overall >= tierRoutine:
		recs = append(recs, "Add to routine monitoring queue")
	default:
		recs = append(recs, "Log only; no action required")
	}

	seenTypes := make(map[schemas.RiskFactorType]struct{}, len(factors))
	seenRecs := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		seenRecs[r] = struct{}{}
	}
	for _, f := range factors {
		if _, dup := seenTypes[f.Type]; dup {
			continue
		}
		seenTypes[f.Type] = struct{}{}
		rec, ok := factorRecommendations[f.Type]
		if !ok {
			continue
		}
		if _, dup := seenRecs[rec]; dup {
			continue
		}
		seenRecs[rec] = struct{}{}
		recs = append(recs, rec)
	}
	return recs
}
