package scoring

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

const (
	iocMinConfidence    = 0.8
	campaignScoreFloor  = 0.7
	iocTag              = "ioc"
	campaignTag         = "campaign"
)

// threatIntelComponent correlates the input's indicators and techniques
// against the knowledge index. Each sub-step failure zeroes that sub-step
// only; the component never aborts the whole score.
func (e *Engine) threatIntelComponent(ctx context.Context, in schemas.ScoreInput) float64 {
	score := 0.0

	for _, indicator := range in.Indicators {
		docs, err := e.retriever.Retrieve(ctx, indicator, schemas.RetrievalFilters{
			MinConfidence: iocMinConfidence,
			Tags:          []string{iocTag},
		}, e.cfg.MaxIntelResults)
		if err != nil {
			e.log.Debug("IOC retrieval failed, sub-step zeroed",
				zap.String("indicator", indicator), zap.Error(err))
			continue
		}
		if len(docs) == 0 {
			continue
		}
		sum := 0.0
		for _, d := range docs {
			sum += d.Confidence
		}
		if avg := sum / float64(len(docs)); avg > score {
			score = avg
		}
	}

	if len(in.Techniques) > 0 {
		lookback := time.Duration(e.cfg.IntelLookbackDays) * 24 * time.Hour
		docs, err := e.retriever.Retrieve(ctx, strings.Join(in.Techniques, " "), schemas.RetrievalFilters{
			Tags:  []string{campaignTag},
			Since: e.now().Add(-lookback),
		}, e.cfg.MaxIntelResults)
		if err != nil {
			e.log.Debug("Campaign retrieval failed, sub-step zeroed", zap.Error(err))
		} else if len(docs) > 0 && score < campaignScoreFloor {
			score = campaignScoreFloor
		}
	}

	return clamp01(score)
}
