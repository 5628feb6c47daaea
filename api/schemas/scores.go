package schemas

import "time"

// -- Threat Scoring Schemas --

// RiskFactorType classifies a piece of scoring evidence.
type RiskFactorType string

const (
	RiskBehavioral  RiskFactorType = "BEHAVIORAL"
	RiskTemporal    RiskFactorType = "TEMPORAL"
	RiskNetwork     RiskFactorType = "NETWORK"
	RiskThreatIntel RiskFactorType = "THREAT_INTEL"
	RiskTechnical   RiskFactorType = "TECHNICAL"
)

// RiskFactor is a single evidence item produced by a scoring call. Factors
// are never persisted apart from their parent score.
type RiskFactor struct {
	Type        RiskFactorType `json:"type"`
	Description string         `json:"description"`
	Impact      float64        `json:"impact"`
	Confidence  float64        `json:"confidence"`
	Evidence    []string       `json:"evidence,omitempty"`
}

// ScoreComponents holds the five named subscores, each clamped to [0,1].
type ScoreComponents struct {
	Baseline    float64 `json:"baseline"`
	Behavioral  float64 `json:"behavioral"`
	ThreatIntel float64 `json:"threat_intel"`
	Temporal    float64 `json:"temporal"`
	Network     float64 `json:"network"`
}

// ThreatScore is the full output of one scoring call. Overall is the clamped
// weighted sum of the components; Confidence grows monotonically with the
// amount of optional context supplied.
type ThreatScore struct {
	Overall           float64         `json:"overall"`
	Confidence        float64         `json:"confidence"`
	Components        ScoreComponents `json:"components"`
	RiskFactors       []RiskFactor    `json:"risk_factors,omitempty"`
	MitigatingFactors []string        `json:"mitigating_factors,omitempty"`
	Recommendations   []string        `json:"recommendations,omitempty"`
	Explanation       string          `json:"explanation,omitempty"`
}

// BehavioralContext compares a user's historical activity patterns against
// the window under evaluation.
type BehavioralContext struct {
	HistoricalLoginHours []int    `json:"historical_login_hours,omitempty"`
	CurrentLoginHours    []int    `json:"current_login_hours,omitempty"`
	HistoricalAccess     []string `json:"historical_access,omitempty"`
	CurrentAccess        []string `json:"current_access,omitempty"`
	HistoricalLocations  []string `json:"historical_locations,omitempty"`
	CurrentLocations     []string `json:"current_locations,omitempty"`
	HistoricalDevices    []string `json:"historical_devices,omitempty"`
	CurrentDevices       []string `json:"current_devices,omitempty"`
	BaselineRiskScore    float64  `json:"baseline_risk_score"`
	CurrentRiskScore     float64  `json:"current_risk_score"`
}

// NetworkContext carries the network observables attached to an event.
type NetworkContext struct {
	SourceIP   string `json:"source_ip,omitempty"`
	DestIP     string `json:"dest_ip,omitempty"`
	Port       int    `json:"port,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	GeoCountry string `json:"geo_country,omitempty"`
	TrustedNet bool   `json:"trusted_net,omitempty"`
}

// TemporalContext carries the time-of-activity observables for scoring.
type TemporalContext struct {
	Timestamp time.Time `json:"timestamp"`
}

// ScoreInput bundles one event (or reasoning context) together with whatever
// optional context is available. Absent context zeroes the matching
// component rather than failing the call.
type ScoreInput struct {
	Severity   Severity           `json:"severity"`
	EventType  string             `json:"event_type"`
	Indicators []string           `json:"indicators,omitempty"`
	Techniques []string           `json:"techniques,omitempty"`
	User       string             `json:"user,omitempty"`
	Source     string             `json:"source,omitempty"`
	Behavioral *BehavioralContext `json:"behavioral,omitempty"`
	Network    *NetworkContext    `json:"network,omitempty"`
	Temporal   *TemporalContext   `json:"temporal,omitempty"`
}
