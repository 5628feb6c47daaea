package schemas

import "time"

// -- Correlation & Alert Schemas --

// ThreatCorrelation groups events sharing an attribute within a time
// window. It is created when two or more events share a grouping key and is
// discarded once emitted as alert input, never re-derived.
type ThreatCorrelation struct {
	ID              string    `json:"id"`
	EventIDs        []string  `json:"event_ids"`
	Score           float64   `json:"score"`
	Techniques      []string  `json:"techniques,omitempty"`
	KillChainPhases []string  `json:"kill_chain_phases,omitempty"`
	Confidence      float64   `json:"confidence"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Alert is the operator-facing output of the correlator, consumed by the
// external event channel.
type Alert struct {
	ID              string   `json:"id"`
	Severity        Severity `json:"severity"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Techniques      []string `json:"techniques,omitempty"`
	Indicators      []string `json:"indicators,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Confidence      float64  `json:"confidence"`
}

// ProcessingResult is the full outcome of processing one raw event.
type ProcessingResult struct {
	Event          *SecurityEvent      `json:"event"`
	Score          *ThreatScore        `json:"score"`
	Correlations   []ThreatCorrelation `json:"correlations,omitempty"`
	CorrelationIDs []string            `json:"correlation_ids,omitempty"`
	Alerts         []Alert             `json:"alerts,omitempty"`
}
