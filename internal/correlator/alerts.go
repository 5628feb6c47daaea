package correlator

import (
	"fmt"
	"strings"

	"github.com/sentra-sec/sentra/api/schemas"
)

// alerts derives operator-facing alerts from a processed event. Three
// independent triggers: the event score crossing the alert threshold, a
// critical technique being observed, and a correlation whose confidence
// strictly exceeds the correlation threshold.
func (p *Processor) alerts(event *schemas.SecurityEvent, score *schemas.ThreatScore, correlations []schemas.ThreatCorrelation) []schemas.Alert {
	var out []schemas.Alert

	if score.Overall > p.cfg.ScoreAlertThreshold {
		out = append(out, schemas.Alert{
			ID:       p.newID(),
			Severity: schemas.SeverityHigh,
			Title:    fmt.Sprintf("High threat score on %s event", event.EventType),
			Description: fmt.Sprintf("Event %s from %s scored %.2f, above the %.2f alert threshold.",
				event.ID, event.Source, score.Overall, p.cfg.ScoreAlertThreshold),
			Techniques:      event.Techniques,
			Indicators:      event.Indicators,
			Recommendations: score.Recommendations,
			Confidence:      score.Confidence,
		})
	}

	if critical := criticalSubset(event.Techniques); len(critical) > 0 {
		out = append(out, schemas.Alert{
			ID:       p.newID(),
			Severity: schemas.SeverityCritical,
			Title:    "Critical attack technique observed",
			Description: fmt.Sprintf("Event %s exhibits %s.",
				event.ID, strings.Join(critical, ", ")),
			Techniques:      critical,
			Indicators:      event.Indicators,
			Recommendations: score.Recommendations,
			Confidence:      score.Confidence,
		})
	}

	for _, c := range correlations {
		if c.Confidence <= p.cfg.CorrAlertThreshold {
			continue
		}
		out = append(out, schemas.Alert{
			ID:       p.newID(),
			Severity: schemas.SeverityHigh,
			Title:    fmt.Sprintf("Correlated activity from %s", event.SourceAddr),
			Description: fmt.Sprintf("%d events from %s correlated between %s and %s with mean score %.2f.",
				len(c.EventIDs), event.SourceAddr,
				c.WindowStart.Format("15:04:05"), c.WindowEnd.Format("15:04:05"), c.Score),
			Techniques:      c.Techniques,
			Indicators:      event.Indicators,
			Recommendations: c.Recommendations,
			Confidence:      c.Confidence,
		})
	}

	return out
}

func criticalSubset(techniques []string) []string {
	var out []string
	for _, t := range techniques {
		if schemas.IsCriticalTechnique(t) {
			out = append(out, t)
		}
	}
	return out
}
