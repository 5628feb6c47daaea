package schemas

import (
	"encoding/json"
	"time"
)

// -- Security Event Schemas --

// RawEvent is an observation as delivered by an ingestion connector, before
// normalization or enrichment.
type RawEvent struct {
	Source     string          `json:"source"`
	EventType  string          `json:"event_type"`
	Severity   Severity        `json:"severity"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	SourceAddr string          `json:"source_addr,omitempty"`
	DestAddr   string          `json:"dest_addr,omitempty"`
	User       string          `json:"user,omitempty"`
	Action     string          `json:"action,omitempty"`
	Resource   string          `json:"resource,omitempty"`
	Protocol   string          `json:"protocol,omitempty"`
	Port       int             `json:"port,omitempty"`
}

// SecurityEvent is one normalized observation. It is created at ingestion,
// mutated exactly once by enrichment and scoring, and immutable after it has
// been persisted. ExpiresAt drives the external retention policy; this
// system never deletes events itself.
type SecurityEvent struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	EventType     string            `json:"event_type"`
	Severity      Severity          `json:"severity"`
	Raw           json.RawMessage   `json:"raw,omitempty"`
	SourceAddr    string            `json:"source_addr,omitempty"`
	DestAddr      string            `json:"dest_addr,omitempty"`
	User          string            `json:"user,omitempty"`
	Action        string            `json:"action,omitempty"`
	Resource      string            `json:"resource,omitempty"`
	Protocol      string            `json:"protocol,omitempty"`
	Port          int               `json:"port,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	ThreatScore   float64           `json:"threat_score"`
	Indicators    []string          `json:"indicators,omitempty"`
	Techniques    []string          `json:"techniques,omitempty"`
	Enrichment    map[string]string `json:"enrichment,omitempty"`
	ExpiresAt     time.Time         `json:"expires_at"`
}
