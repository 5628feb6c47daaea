package correlator

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

const correlationConfidencePerTechnique = 0.1

// correlate groups the event with its neighbors sharing a source address
// inside the configured window. A store failure yields zero correlations;
// the event itself was already persisted and stays usable.
func (p *Processor) correlate(ctx context.Context, event *schemas.SecurityEvent) []schemas.ThreatCorrelation {
	if event.SourceAddr == "" {
		return nil
	}

	from := event.Timestamp.Add(-p.cfg.Window)
	to := event.Timestamp.Add(p.cfg.Window)

	neighbors, err := p.events.EventsBySourceAddr(ctx, event.SourceAddr, from, to)
	if err != nil {
		p.log.Warn("Correlation window query failed",
			zap.String("source_addr", event.SourceAddr), zap.Error(err))
		return nil
	}

	group := make([]schemas.SecurityEvent, 0, len(neighbors)+1)
	seen := make(map[string]struct{}, len(neighbors)+1)
	for _, n := range neighbors {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		group = append(group, n)
	}
	if _, ok := seen[event.ID]; !ok {
		group = append(group, *event)
	}

	if len(group) < p.cfg.MinGroupSize {
		return nil
	}

	return []schemas.ThreatCorrelation{p.buildCorrelation(group)}
}

// buildCorrelation derives one correlation from a window group. The window
// bounds cover every member timestamp.
func (p *Processor) buildCorrelation(group []schemas.SecurityEvent) schemas.ThreatCorrelation {
	ids := make([]string, 0, len(group))
	techniqueSet := make(map[string]struct{})
	sum := 0.0
	start, end := group[0].Timestamp, group[0].Timestamp

	for _, e := range group {
		ids = append(ids, e.ID)
		sum += e.ThreatScore
		for _, t := range e.Techniques {
			techniqueSet[t] = struct{}{}
		}
		if e.Timestamp.Before(start) {
			start = e.Timestamp
		}
		if e.Timestamp.After(end) {
			end = e.Timestamp
		}
	}

	techniques := make([]string, 0, len(techniqueSet))
	for t := range techniqueSet {
		techniques = append(techniques, t)
	}
	sort.Strings(techniques)

	score := sum / float64(len(group))
	confidence := score + correlationConfidencePerTechnique*float64(len(techniques))
	if confidence > 1.0 {
		confidence = 1.0
	}

	return schemas.ThreatCorrelation{
		ID:              p.newID(),
		EventIDs:        ids,
		Score:           score,
		Techniques:      techniques,
		KillChainPhases: schemas.KillChainPhases(techniques),
		Confidence:      confidence,
		WindowStart:     start,
		WindowEnd:       end,
		Recommendations: correlationRecommendations(score, techniques),
	}
}

// correlationRecommendations suggests follow-up for a correlated group.
func correlationRecommendations(score float64, techniques []string) []string {
	recs := []string{"Review the correlated events as a single incident"}
	if schemas.AnyCriticalTechnique(techniques) {
		recs = append(recs, "Critical technique in group; engage incident response")
	}
	if score >= 0.6 {
		recs = append(recs, "Consider blocking the shared source address")
	}
	return recs
}
