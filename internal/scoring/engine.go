package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
)

// Component weights for the overall score. Fixed, not configuration.
const (
	weightBaseline    = 0.30
	weightBehavioral  = 0.25
	weightThreatIntel = 0.25
	weightTemporal    = 0.10
	weightNetwork     = 0.10
)

// Confidence contributions per available context block.
const (
	confidenceBase       = 0.5
	confidenceBehavioral = 0.20
	confidenceNetwork    = 0.15
	confidenceTemporal   = 0.10
	confidenceIndicators = 0.10
	confidenceTechniques = 0.05
)

// Engine computes threat scores. It is stateless per call aside from reads
// against the injected collaborators, so concurrent Score calls for
// different events need no coordination. Every external lookup that fails
// contributes a neutral zero instead of propagating, so scoring always
// produces a result.
type Engine struct {
	retriever  schemas.KnowledgeRetriever
	anomaly    schemas.CapabilityExecutor
	reputation schemas.ReputationClient
	cfg        config.ScoringConfig
	log        *zap.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock fixes the engine's notion of now. Test use.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the scoring collaborators.
func NewEngine(
	retriever schemas.KnowledgeRetriever,
	anomaly schemas.CapabilityExecutor,
	reputation schemas.ReputationClient,
	cfg config.ScoringConfig,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		retriever:  retriever,
		anomaly:    anomaly,
		reputation: reputation,
		cfg:        cfg,
		log:        logger.Named("scoring"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the full threat score for one input. Deterministic given
// identical inputs and identical collaborator responses.
func (e *Engine) Score(ctx context.Context, in schemas.ScoreInput) *schemas.ThreatScore {
	components := schemas.ScoreComponents{
		Baseline:    e.baselineComponent(in),
		Behavioral:  e.behavioralComponent(ctx, in),
		ThreatIntel: e.threatIntelComponent(ctx, in),
		Temporal:    e.temporalComponent(in),
		Network:     e.networkComponent(ctx, in),
	}

	overall := clamp01(components.Baseline*weightBaseline +
		components.Behavioral*weightBehavioral +
		components.ThreatIntel*weightThreatIntel +
		components.Temporal*weightTemporal +
		components.Network*weightNetwork)

	confidence := e.confidence(in)
	factors := e.riskFactors(in, components)

	score := &schemas.ThreatScore{
		Overall:           overall,
		Confidence:        confidence,
		Components:        components,
		RiskFactors:       factors,
		MitigatingFactors: e.mitigatingFactors(in),
		Recommendations:   e.recommendations(overall, factors),
		Explanation:       e.explain(in, overall, components),
	}

	e.log.Debug("Threat score computed",
		zap.Float64("overall", overall),
		zap.Float64("confidence", confidence),
		zap.Int("risk_factors", len(factors)),
	)
	return score
}

// confidence grows monotonically with the amount of optional context
// supplied; supplying more context can never lower it.
func (e *Engine) confidence(in schemas.ScoreInput) float64 {
	c := confidenceBase
	if in.Behavioral != nil {
		c += confidenceBehavioral
	}
	if in.Network != nil {
		c += confidenceNetwork
	}
	if in.Temporal != nil {
		c += confidenceTemporal
	}
	if len(in.Indicators) > 0 {
		c += confidenceIndicators
	}
	if len(in.Techniques) > 0 {
		c += confidenceTechniques
	}
	return clamp01(c)
}

func (e *Engine) explain(in schemas.ScoreInput, overall float64, c schemas.ScoreComponents) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall threat score %.2f for %s event (severity %s).", overall, in.EventType, in.Severity)
	fmt.Fprintf(&b, " Components: baseline %.2f, behavioral %.2f, threat-intel %.2f, temporal %.2f, network %.2f.",
		c.Baseline, c.Behavioral, c.ThreatIntel, c.Temporal, c.Network)
	if len(in.Techniques) > 0 {
		fmt.Fprintf(&b, " Techniques observed: %s.", strings.Join(in.Techniques, ", "))
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
