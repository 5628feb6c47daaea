// Package correlator turns raw security observations into scored,
// correlated, alert-ready events.
package correlator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/enrichment"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scorer computes a threat score for one enriched input. Satisfied by
// *scoring.Engine.
type Scorer interface {
	Score(ctx context.Context, in schemas.ScoreInput) *schemas.ThreatScore
}

// Processor runs the normalize, enrich, score, persist, correlate, alert,
// publish pipeline for incoming events.
type Processor struct {
	scorer     Scorer
	events     schemas.EventStore
	channel    schemas.EventChannel
	reputation schemas.ReputationClient
	profiles   schemas.UserProfileClient
	cfg        config.CorrelatorConfig
	subject    string
	log        *zap.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock fixes the processor's notion of now. Test use.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithIDGenerator fixes event and correlation ID generation. Test use.
func WithIDGenerator(gen func() string) Option {
	return func(p *Processor) { p.newID = gen }
}

// NewProcessor wires the processing pipeline.
func NewProcessor(
	scorer Scorer,
	events schemas.EventStore,
	channel schemas.EventChannel,
	reputation schemas.ReputationClient,
	profiles schemas.UserProfileClient,
	cfg config.CorrelatorConfig,
	subjectPrefix string,
	logger *zap.Logger,
	opts ...Option,
) *Processor {
	p := &Processor{
		scorer:     scorer,
		events:     events,
		channel:    channel,
		reputation: reputation,
		profiles:   profiles,
		cfg:        cfg,
		subject:    subjectPrefix,
		log:        logger.Named("correlator"),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one raw event through the full pipeline. Enrichment and
// correlation sub-failures degrade; a persistence failure aborts, since an
// unstored event can never participate in later correlations.
func (p *Processor) Process(ctx context.Context, raw schemas.RawEvent) (*schemas.ProcessingResult, error) {
	event := p.normalize(raw)

	in := p.enrich(ctx, event)

	score := p.scorer.Score(ctx, in)
	event.ThreatScore = score.Overall

	if err := p.events.SaveEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("persisting event %s: %w", event.ID, err)
	}

	correlations := p.correlate(ctx, event)
	ids := make([]string, 0, len(correlations))
	for _, c := range correlations {
		ids = append(ids, c.ID)
	}
	if len(ids) > 0 {
		event.CorrelationID = ids[0]
	}

	result := &schemas.ProcessingResult{
		Event:          event,
		Score:          score,
		Correlations:   correlations,
		CorrelationIDs: ids,
		Alerts:         p.alerts(event, score, correlations),
	}

	p.publish(ctx, result)

	p.log.Info("Event processed",
		zap.String("event_id", event.ID),
		zap.Float64("score", score.Overall),
		zap.Int("correlations", len(correlations)),
		zap.Int("alerts", len(result.Alerts)),
	)
	return result, nil
}

// normalize assigns identity, fills missing timestamps and stamps the
// retention expiry.
func (p *Processor) normalize(raw schemas.RawEvent) *schemas.SecurityEvent {
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = p.now()
	}
	return &schemas.SecurityEvent{
		ID:         p.newID(),
		Timestamp:  ts,
		Source:     raw.Source,
		EventType:  raw.EventType,
		Severity:   raw.Severity,
		Raw:        raw.Payload,
		SourceAddr: raw.SourceAddr,
		DestAddr:   raw.DestAddr,
		User:       raw.User,
		Action:     raw.Action,
		Resource:   raw.Resource,
		Protocol:   raw.Protocol,
		Port:       raw.Port,
		ExpiresAt:  ts.Add(p.cfg.EventRetention),
	}
}

// enrich extracts indicators and techniques onto the event and assembles
// the scoring input. Every lookup is best-effort.
func (p *Processor) enrich(ctx context.Context, event *schemas.SecurityEvent) schemas.ScoreInput {
	event.Indicators = enrichment.ExtractIndicators(
		event.Action, event.Resource, event.SourceAddr, event.DestAddr, string(event.Raw),
	)
	event.Techniques = enrichment.MapTechniques(event.EventType, event.Action)

	in := schemas.ScoreInput{
		Severity:   event.Severity,
		EventType:  event.EventType,
		Indicators: event.Indicators,
		Techniques: event.Techniques,
		User:       event.User,
		Source:     event.Source,
		Temporal:   &schemas.TemporalContext{Timestamp: event.Timestamp},
	}

	trusted := false
	if event.User != "" {
		profile, err := p.profiles.LookupUser(ctx, event.User)
		if err != nil {
			p.log.Debug("User profile lookup skipped", zap.String("user", event.User), zap.Error(err))
		} else {
			trusted = profile.TrustedSource
			in.Behavioral = behavioralContext(event, profile)
		}
	}

	if event.SourceAddr != "" && p.reputation != nil {
		if rep, err := p.reputation.LookupIP(ctx, event.SourceAddr); err == nil {
			if event.Enrichment == nil {
				event.Enrichment = make(map[string]string)
			}
			event.Enrichment["source_reputation"] = string(rep.Category)
		}
	}

	if event.SourceAddr != "" || event.DestAddr != "" || event.Port != 0 {
		in.Network = &schemas.NetworkContext{
			SourceIP:   event.SourceAddr,
			DestIP:     event.DestAddr,
			Port:       event.Port,
			Protocol:   event.Protocol,
			TrustedNet: trusted,
		}
	}
	return in
}

// behavioralContext pairs the profile's historical patterns with what this
// event actually observed. A pattern family with no current observation is
// omitted on both sides so its distance reads as no deviation, not a
// maximal one.
func behavioralContext(event *schemas.SecurityEvent, profile schemas.UserProfile) *schemas.BehavioralContext {
	b := &schemas.BehavioralContext{
		HistoricalLoginHours: profile.NormalLoginHours,
		CurrentLoginHours:    []int{event.Timestamp.Hour()},
		BaselineRiskScore:    profile.RiskScore,
		CurrentRiskScore:     severityRisk(event.Severity),
	}
	if event.Resource != "" {
		b.HistoricalAccess = profile.NormalAccess
		b.CurrentAccess = []string{event.Resource}
	}
	if loc := payloadString(event.Raw, "location"); loc != "" {
		b.HistoricalLocations = profile.NormalLocations
		b.CurrentLocations = []string{loc}
	}
	if dev := payloadString(event.Raw, "device"); dev != "" {
		b.HistoricalDevices = profile.NormalDevices
		b.CurrentDevices = []string{dev}
	}
	return b
}

// severityRisk maps the event's severity onto the user risk scale so the
// risk-delta feature compares this event against the profile baseline.
func severityRisk(s schemas.Severity) float64 {
	switch s {
	case schemas.SeverityCritical:
		return 0.9
	case schemas.SeverityHigh:
		return 0.7
	case schemas.SeverityMedium:
		return 0.4
	default:
		return 0.2
	}
}

// payloadString reads a top-level string field from the raw payload.
func payloadString(raw []byte, key string) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}

// publish emits the processed result downstream. Fire-and-forget.
func (p *Processor) publish(ctx context.Context, result *schemas.ProcessingResult) {
	if p.channel == nil {
		return
	}
	if err := p.channel.Publish(ctx, p.subject+".processed", result); err != nil {
		p.log.Warn("Result publish failed", zap.String("event_id", result.Event.ID), zap.Error(err))
	}
	for _, alert := range result.Alerts {
		if err := p.channel.Publish(ctx, p.subject+".alerts", alert); err != nil {
			p.log.Warn("Alert publish failed", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}
}
