package schemas

// -- Shared Enumerations --

// Capability identifies a specialized reasoning function. The set is closed:
// dispatch happens through a registry keyed on these values, never through
// open-ended string matching.
type Capability string

const (
	CapabilityThreatHunting    Capability = "THREAT_HUNTING"
	CapabilityIntelCorrelation Capability = "INTEL_CORRELATION"
	CapabilityIncidentPlanning Capability = "INCIDENT_PLANNING"
	CapabilityVulnTriage       Capability = "VULNERABILITY_TRIAGE"
	CapabilityForensics        Capability = "FORENSICS"
	CapabilityAnomalyScoring   Capability = "ANOMALY_SCORING"
	CapabilityReporting        Capability = "REPORTING"
)

// AllCapabilities lists every member of the closed capability set, in a
// stable order suitable for deterministic iteration.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityThreatHunting,
		CapabilityIntelCorrelation,
		CapabilityIncidentPlanning,
		CapabilityVulnTriage,
		CapabilityForensics,
		CapabilityAnomalyScoring,
		CapabilityReporting,
	}
}

// Valid reports whether c is a member of the closed capability set.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityThreatHunting, CapabilityIntelCorrelation, CapabilityIncidentPlanning,
		CapabilityVulnTriage, CapabilityForensics, CapabilityAnomalyScoring, CapabilityReporting:
		return true
	}
	return false
}

// Severity classifies a security event.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Priority orders tasks contending for execution slots.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank maps a priority to a sortable weight; higher runs first. Unknown
// values rank below LOW so malformed input never jumps the queue.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}
