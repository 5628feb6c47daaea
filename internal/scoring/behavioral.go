package scoring

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

// anomalyFeatures is the feature vector handed to the anomaly-scoring
// capability. Field order is stable so identical input produces identical
// serialized prompts.
type anomalyFeatures struct {
	LoginHourDeviation float64 `json:"login_hour_deviation"`
	AccessDistance     float64 `json:"access_distance"`
	LocationDistance   float64 `json:"location_distance"`
	DeviceDistance     float64 `json:"device_distance"`
	RiskDelta          float64 `json:"risk_delta"`
}

// behavioralComponent builds the deviation feature vector and delegates the
// verdict to the anomaly-scoring capability. No behavioral context, or any
// capability failure, contributes zero.
func (e *Engine) behavioralComponent(ctx context.Context, in schemas.ScoreInput) float64 {
	b := in.Behavioral
	if b == nil {
		return 0
	}

	features := anomalyFeatures{
		LoginHourDeviation: loginHourDeviation(b.HistoricalLoginHours, b.CurrentLoginHours),
		AccessDistance:     jaccardDistance(b.HistoricalAccess, b.CurrentAccess),
		LocationDistance:   jaccardDistance(b.HistoricalLocations, b.CurrentLocations),
		DeviceDistance:     jaccardDistance(b.HistoricalDevices, b.CurrentDevices),
		RiskDelta:          math.Abs(b.BaselineRiskScore - b.CurrentRiskScore),
	}

	payload, err := json.Marshal(features)
	if err != nil {
		return 0
	}

	out, err := e.anomaly.Invoke(ctx, schemas.CapabilityAnomalyScoring, "scoring", string(payload))
	if err != nil {
		e.log.Debug("Anomaly-scoring capability unavailable, behavioral component zeroed", zap.Error(err))
		return 0
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		e.log.Debug("Anomaly-scoring capability returned non-numeric output", zap.String("output", out))
		return 0
	}
	return clamp01(score)
}

// loginHourDeviation is the absolute difference between the historical and
// current mean login hours, normalized by 24.
func loginHourDeviation(historical, current []int) float64 {
	if len(historical) == 0 || len(current) == 0 {
		return 0
	}
	return math.Abs(meanInts(historical)-meanInts(current)) / 24.0
}

func meanInts(vals []int) float64 {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

// jaccardDistance is 1 - |A∩B| / |A∪B|. Two empty sets are identical, so
// their distance is zero.
func jaccardDistance(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	union := make(map[string]struct{}, len(a)+len(b))
	inA := make(map[string]struct{}, len(a))
	for _, v := range a {
		union[v] = struct{}{}
		inA[v] = struct{}{}
	}
	intersection := 0
	for _, v := range b {
		if _, ok := inA[v]; ok {
			intersection++
			// Count each shared member once even if b repeats it.
			delete(inA, v)
		}
		union[v] = struct{}{}
	}
	return 1.0 - float64(intersection)/float64(len(union))
}
