package correlator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
)

// -- Fakes --

type fakeScorer struct {
	score  *schemas.ThreatScore
	inputs []schemas.ScoreInput
}

func (f *fakeScorer) Score(ctx context.Context, in schemas.ScoreInput) *schemas.ThreatScore {
	f.inputs = append(f.inputs, in)
	if f.score != nil {
		return f.score
	}
	return &schemas.ThreatScore{Overall: 0.5, Confidence: 0.6}
}

type fakeEventStore struct {
	saved    []schemas.SecurityEvent
	saveErr  error
	queryErr error
}

func (f *fakeEventStore) SaveEvent(ctx context.Context, event *schemas.SecurityEvent) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *event)
	return nil
}

func (f *fakeEventStore) EventsBySourceAddr(ctx context.Context, sourceAddr string, from, to time.Time) ([]schemas.SecurityEvent, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []schemas.SecurityEvent
	for _, e := range f.saved {
		if e.SourceAddr != sourceAddr {
			continue
		}
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeChannel struct {
	published map[string][]any
	err       error
}

func (f *fakeChannel) Publish(ctx context.Context, subject string, payload any) error {
	if f.err != nil {
		return f.err
	}
	if f.published == nil {
		f.published = make(map[string][]any)
	}
	f.published[subject] = append(f.published[subject], payload)
	return nil
}

type fakeProfiles struct {
	profile schemas.UserProfile
	err     error
}

func (f *fakeProfiles) LookupUser(ctx context.Context, userID string) (schemas.UserProfile, error) {
	if f.err != nil {
		return schemas.UserProfile{}, f.err
	}
	return f.profile, nil
}

type fakeReputation struct{}

func (fakeReputation) LookupIP(ctx context.Context, ip string) (schemas.IPReputation, error) {
	return schemas.IPReputation{Category: schemas.ReputationNeutral}, nil
}

type env struct {
	scorer   *fakeScorer
	store    *fakeEventStore
	channel  *fakeChannel
	profiles *fakeProfiles
	proc     *Processor
}

func testClock() time.Time {
	return time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		scorer:   &fakeScorer{},
		store:    &fakeEventStore{},
		channel:  &fakeChannel{},
		profiles: &fakeProfiles{err: errors.New("no profile service")},
	}
	seq := 0
	e.proc = NewProcessor(
		e.scorer, e.store, e.channel, fakeReputation{}, e.profiles,
		config.CorrelatorConfig{
			Window:              time.Hour,
			MinGroupSize:        2,
			EventRetention:      90 * 24 * time.Hour,
			ScoreAlertThreshold: 0.8,
			CorrAlertThreshold:  0.7,
		},
		"sentra.events",
		zap.NewNop(),
		WithClock(testClock),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%d", seq) }),
	)
	return e
}

// -- Pipeline --

func TestProcessNormalizesAndPersists(t *testing.T) {
	e := newEnv(t)
	ts := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:     "edr",
		EventType:  "process_creation",
		Severity:   schemas.SeverityHigh,
		Timestamp:  ts,
		SourceAddr: "10.0.0.5",
		User:       "jdoe",
		Action:     "spawned powershell.exe",
	})
	require.NoError(t, err)

	event := result.Event
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, ts, event.Timestamp)
	assert.Equal(t, ts.Add(90*24*time.Hour), event.ExpiresAt)
	assert.Contains(t, event.Indicators, "10.0.0.5")
	assert.Contains(t, event.Techniques, "T1059")

	require.Len(t, e.store.saved, 1)
	assert.Equal(t, event.ID, e.store.saved[0].ID)

	assert.Len(t, e.channel.published["sentra.events.processed"], 1)
}

func TestProcessDefaultsMissingTimestamp(t *testing.T) {
	e := newEnv(t)

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "siem",
		EventType: "login",
		Severity:  schemas.SeverityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, testClock(), result.Event.Timestamp)
}

func TestProcessPersistenceFailureAborts(t *testing.T) {
	e := newEnv(t)
	e.store.saveErr = fmt.Errorf("%w: connection refused", schemas.ErrPersistence)

	_, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "siem",
		EventType: "login",
		Severity:  schemas.SeverityLow,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrPersistence)
}

func TestProcessPublishFailureIsSwallowed(t *testing.T) {
	e := newEnv(t)
	e.channel.err = errors.New("nats down")

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "siem",
		EventType: "login",
		Severity:  schemas.SeverityLow,
	})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

// -- Enrichment --

func TestEnrichProfileLookupFailureDegrades(t *testing.T) {
	e := newEnv(t)
	e.profiles.err = errors.New("profile service down")

	_, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "siem",
		EventType: "login",
		Severity:  schemas.SeverityLow,
		User:      "jdoe",
	})
	require.NoError(t, err)
	require.Len(t, e.scorer.inputs, 1)
	assert.Nil(t, e.scorer.inputs[0].Behavioral)
}

func TestEnrichBuildsBehavioralAndNetworkContext(t *testing.T) {
	e := newEnv(t)
	e.profiles.err = nil
	e.profiles.profile = schemas.UserProfile{
		RiskScore:        0.2,
		NormalLoginHours: []int{9, 10, 17},
		NormalAccess:     []string{"crm"},
		TrustedSource:    true,
	}

	ts := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	_, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:     "vpn",
		EventType:  "login",
		Severity:   schemas.SeverityMedium,
		Timestamp:  ts,
		User:       "jdoe",
		Resource:   "vault",
		SourceAddr: "203.0.113.9",
		Port:       443,
	})
	require.NoError(t, err)

	require.Len(t, e.scorer.inputs, 1)
	in := e.scorer.inputs[0]
	require.NotNil(t, in.Behavioral)
	assert.Equal(t, []int{9, 10, 17}, in.Behavioral.HistoricalLoginHours)
	assert.Equal(t, []int{3}, in.Behavioral.CurrentLoginHours)
	assert.Equal(t, []string{"vault"}, in.Behavioral.CurrentAccess)
	require.NotNil(t, in.Network)
	assert.Equal(t, "203.0.113.9", in.Network.SourceIP)
	assert.True(t, in.Network.TrustedNet)
	require.NotNil(t, in.Temporal)
	assert.Equal(t, ts, in.Temporal.Timestamp)
}

func TestEnrichOmitsUnobservedPatternFamilies(t *testing.T) {
	e := newEnv(t)
	e.profiles.err = nil
	e.profiles.profile = schemas.UserProfile{
		RiskScore:       0.4,
		NormalLocations: []string{"office"},
		NormalDevices:   []string{"laptop-7"},
		NormalAccess:    []string{"crm"},
	}

	_, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "siem",
		EventType: "login",
		Severity:  schemas.SeverityMedium,
		User:      "jdoe",
	})
	require.NoError(t, err)

	require.Len(t, e.scorer.inputs, 1)
	b := e.scorer.inputs[0].Behavioral
	require.NotNil(t, b)
	assert.Empty(t, b.HistoricalLocations)
	assert.Empty(t, b.CurrentLocations)
	assert.Empty(t, b.HistoricalDevices)
	assert.Empty(t, b.CurrentDevices)
	assert.Empty(t, b.HistoricalAccess)
	assert.Empty(t, b.CurrentAccess)
	assert.InDelta(t, 0.4, b.BaselineRiskScore, 1e-9)
	assert.InDelta(t, 0.4, b.CurrentRiskScore, 1e-9)
}

func TestEnrichPairsPayloadObservations(t *testing.T) {
	e := newEnv(t)
	e.profiles.err = nil
	e.profiles.profile = schemas.UserProfile{
		NormalLocations: []string{"office"},
		NormalDevices:   []string{"laptop-7"},
	}

	_, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "siem",
		EventType: "login",
		Severity:  schemas.SeverityHigh,
		User:      "jdoe",
		Payload:   []byte(`{"location":"office","device":"laptop-7","extra":1}`),
	})
	require.NoError(t, err)

	require.Len(t, e.scorer.inputs, 1)
	b := e.scorer.inputs[0].Behavioral
	require.NotNil(t, b)
	assert.Equal(t, []string{"office"}, b.HistoricalLocations)
	assert.Equal(t, []string{"office"}, b.CurrentLocations)
	assert.Equal(t, []string{"laptop-7"}, b.HistoricalDevices)
	assert.Equal(t, []string{"laptop-7"}, b.CurrentDevices)
	assert.InDelta(t, 0.7, b.CurrentRiskScore, 1e-9)
}

// -- Correlation --

func TestCorrelationGroupsSharedSourceAddr(t *testing.T) {
	e := newEnv(t)
	e.scorer.score = &schemas.ThreatScore{Overall: 0.6, Confidence: 0.6}
	base := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	// Seed a stored neighbor inside the window.
	e.store.saved = append(e.store.saved, schemas.SecurityEvent{
		ID:          "seed-1",
		Timestamp:   base.Add(-30 * time.Minute),
		SourceAddr:  "10.0.0.5",
		ThreatScore: 0.6,
		Techniques:  []string{"T1059"},
	})

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:     "edr",
		EventType:  "process_creation",
		Severity:   schemas.SeverityHigh,
		Timestamp:  base,
		SourceAddr: "10.0.0.5",
	})
	require.NoError(t, err)

	require.Len(t, result.Correlations, 1)
	c := result.Correlations[0]
	assert.Len(t, c.EventIDs, 2)
	assert.InDelta(t, 0.6, c.Score, 1e-9)
	assert.Equal(t, []string{"T1059"}, c.Techniques)
	assert.Equal(t, []string{"execution"}, c.KillChainPhases)
	assert.InDelta(t, 0.7, c.Confidence, 1e-9)
	assert.Equal(t, c.ID, result.Event.CorrelationID)
	assert.Equal(t, []string{c.ID}, result.CorrelationIDs)

	// Confidence of exactly 0.7 does not cross the strict threshold.
	assert.Empty(t, result.Alerts)
}

func TestCorrelationRequiresMinimumGroupSize(t *testing.T) {
	e := newEnv(t)

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:     "edr",
		EventType:  "login",
		Severity:   schemas.SeverityLow,
		SourceAddr: "10.0.0.5",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Correlations)
}

func TestCorrelationSkippedWithoutSourceAddr(t *testing.T) {
	e := newEnv(t)

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "siem",
		EventType: "login",
		Severity:  schemas.SeverityLow,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Correlations)
}

func TestCorrelationQueryFailureYieldsNone(t *testing.T) {
	e := newEnv(t)
	e.store.queryErr = errors.New("query timeout")

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:     "edr",
		EventType:  "login",
		Severity:   schemas.SeverityLow,
		SourceAddr: "10.0.0.5",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Correlations)
}

func TestCorrelationWindowInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		e := newEnv(t)
		n := 1 + rng.Intn(6)
		for j := 0; j < n; j++ {
			offset := time.Duration(rng.Intn(3600)-1800) * time.Second
			e.store.saved = append(e.store.saved, schemas.SecurityEvent{
				ID:          fmt.Sprintf("seed-%d-%d", i, j),
				Timestamp:   base.Add(offset),
				SourceAddr:  "192.0.2.7",
				ThreatScore: rng.Float64(),
			})
		}

		result, err := e.proc.Process(context.Background(), schemas.RawEvent{
			Source:     "edr",
			EventType:  "network",
			Severity:   schemas.SeverityMedium,
			Timestamp:  base,
			SourceAddr: "192.0.2.7",
		})
		require.NoError(t, err)
		require.Len(t, result.Correlations, 1)

		c := result.Correlations[0]
		require.False(t, c.WindowEnd.Before(c.WindowStart))
		members := make(map[string]struct{}, len(c.EventIDs))
		for _, id := range c.EventIDs {
			members[id] = struct{}{}
		}
		for _, saved := range e.store.saved {
			if _, ok := members[saved.ID]; !ok {
				continue
			}
			require.False(t, saved.Timestamp.Before(c.WindowStart), "member before window start")
			require.False(t, saved.Timestamp.After(c.WindowEnd), "member after window end")
		}
	}
}

// -- Alerts --

func TestAlertOnHighScore(t *testing.T) {
	e := newEnv(t)
	e.scorer.score = &schemas.ThreatScore{
		Overall:         0.85,
		Confidence:      0.7,
		Recommendations: []string{"Immediate investigation required"},
	}

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "edr",
		EventType: "login",
		Severity:  schemas.SeverityHigh,
	})
	require.NoError(t, err)

	require.Len(t, result.Alerts, 1)
	alert := result.Alerts[0]
	assert.Equal(t, schemas.SeverityHigh, alert.Severity)
	assert.True(t, strings.HasPrefix(alert.Title, "High threat score"))
	assert.Contains(t, alert.Recommendations, "Immediate investigation required")
	assert.Len(t, e.channel.published["sentra.events.alerts"], 1)
}

func TestAlertScoreThresholdIsStrict(t *testing.T) {
	e := newEnv(t)
	e.scorer.score = &schemas.ThreatScore{Overall: 0.8, Confidence: 0.7}

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "edr",
		EventType: "login",
		Severity:  schemas.SeverityHigh,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Alerts)
}

func TestAlertOnCriticalTechnique(t *testing.T) {
	e := newEnv(t)
	e.scorer.score = &schemas.ThreatScore{Overall: 0.5, Confidence: 0.6}

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:    "edr",
		EventType: "file_access",
		Severity:  schemas.SeverityHigh,
		Action:    "encrypt volume",
	})
	require.NoError(t, err)

	require.Len(t, result.Alerts, 1)
	alert := result.Alerts[0]
	assert.Equal(t, schemas.SeverityCritical, alert.Severity)
	assert.Equal(t, []string{"T1486"}, alert.Techniques)
}

func TestAlertOnCorrelationConfidence(t *testing.T) {
	e := newEnv(t)
	e.scorer.score = &schemas.ThreatScore{Overall: 0.7, Confidence: 0.6}
	base := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	e.store.saved = append(e.store.saved, schemas.SecurityEvent{
		ID:          "seed-1",
		Timestamp:   base.Add(-10 * time.Minute),
		SourceAddr:  "10.0.0.5",
		ThreatScore: 0.7,
		Techniques:  []string{"T1059", "T1071"},
	})

	result, err := e.proc.Process(context.Background(), schemas.RawEvent{
		Source:     "edr",
		EventType:  "network",
		Severity:   schemas.SeverityHigh,
		Timestamp:  base,
		Action:     "beacon to c2",
		SourceAddr: "10.0.0.5",
	})
	require.NoError(t, err)

	require.Len(t, result.Correlations, 1)
	// mean 0.7 + 0.1 x 2 techniques = 0.9, above the strict 0.7 threshold.
	assert.InDelta(t, 0.9, result.Correlations[0].Confidence, 1e-9)

	require.Len(t, result.Alerts, 1)
	assert.True(t, strings.HasPrefix(result.Alerts[0].Title, "Correlated activity"))
	assert.InDelta(t, 0.9, result.Alerts[0].Confidence, 1e-9)
}
