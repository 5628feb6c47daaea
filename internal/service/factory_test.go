package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/scoring"
)

type recordingExecutor struct {
	lastCap   schemas.Capability
	lastInput string
}

func (r *recordingExecutor) Invoke(ctx context.Context, cap schemas.Capability, sessionID, input string) (string, error) {
	r.lastCap = cap
	r.lastInput = input
	return "delegated", nil
}

type emptyRetriever struct{}

func (emptyRetriever) Retrieve(ctx context.Context, query string, filters schemas.RetrievalFilters, maxResults int) ([]schemas.Document, error) {
	return nil, nil
}

type neutralReputation struct{}

func (neutralReputation) LookupIP(ctx context.Context, ip string) (schemas.IPReputation, error) {
	return schemas.IPReputation{Category: schemas.ReputationNeutral}, nil
}

func newLocalEngine(delegate schemas.CapabilityExecutor) *scoring.Engine {
	return scoring.NewEngine(emptyRetriever{}, delegate, neutralReputation{}, config.ScoringConfig{
		IntelLookbackDays:  30,
		MaxIntelResults:    10,
		BusinessHoursStart: 8,
		BusinessHoursEnd:   18,
	}, zap.NewNop())
}

func TestScoringExecutorRoutesStructuredScoringInput(t *testing.T) {
	delegate := &recordingExecutor{}
	exec := newScoringExecutor(newLocalEngine(delegate), delegate)

	input, err := json.MarshalToString(schemas.ScoreInput{
		Severity:   schemas.SeverityHigh,
		EventType:  "process_creation",
		Techniques: []string{"T1059"},
	})
	require.NoError(t, err)

	out, err := exec.Invoke(context.Background(), schemas.CapabilityAnomalyScoring, "sess-1", input)
	require.NoError(t, err)

	var score schemas.ThreatScore
	require.NoError(t, json.UnmarshalFromString(out, &score))
	assert.InDelta(t, 0.27, score.Overall, 1e-9)
	assert.Empty(t, delegate.lastCap)
}

func TestScoringExecutorRoutesIntelCorrelationInput(t *testing.T) {
	delegate := &recordingExecutor{}
	exec := newScoringExecutor(newLocalEngine(delegate), delegate)

	input, err := json.MarshalToString(schemas.ScoreInput{
		Severity:   schemas.SeverityMedium,
		Indicators: []string{"203.0.113.7"},
	})
	require.NoError(t, err)

	out, err := exec.Invoke(context.Background(), schemas.CapabilityIntelCorrelation, "sess-1", input)
	require.NoError(t, err)

	var score schemas.ThreatScore
	require.NoError(t, json.UnmarshalFromString(out, &score))
	assert.Greater(t, score.Overall, 0.0)
	assert.Empty(t, delegate.lastCap)
}

func TestScoringExecutorDelegatesPlainInput(t *testing.T) {
	delegate := &recordingExecutor{}
	exec := newScoringExecutor(newLocalEngine(delegate), delegate)

	out, err := exec.Invoke(context.Background(), schemas.CapabilityAnomalyScoring, "sess-1", "free-form anomaly question")
	require.NoError(t, err)
	assert.Equal(t, "delegated", out)
	assert.Equal(t, schemas.CapabilityAnomalyScoring, delegate.lastCap)
}

func TestScoringExecutorDelegatesOtherCapabilities(t *testing.T) {
	delegate := &recordingExecutor{}
	exec := newScoringExecutor(newLocalEngine(delegate), delegate)

	out, err := exec.Invoke(context.Background(), schemas.CapabilityThreatHunting, "sess-1", "hunt")
	require.NoError(t, err)
	assert.Equal(t, "delegated", out)
	assert.Equal(t, schemas.CapabilityThreatHunting, delegate.lastCap)
}
