package scoring

import (
	"time"

	"github.com/sentra-sec/sentra/api/schemas"
)

const (
	offHoursBonus    = 0.3
	weekendBonus     = 0.2
	deadOfNightLow   = 2
	deadOfNightHigh  = 5
	deadOfNightBonus = 0.4
)

// temporalComponent rewards activity at times attackers favor. No temporal
// context contributes zero.
func (e *Engine) temporalComponent(in schemas.ScoreInput) float64 {
	if in.Temporal == nil {
		return 0
	}
	ts := in.Temporal.Timestamp

	score := 0.0
	if !e.withinBusinessHours(ts) {
		score += offHoursBonus
	}
	if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
		score += weekendBonus
	}
	if h := ts.Hour(); h >= deadOfNightLow && h <= deadOfNightHigh {
		score += deadOfNightBonus
	}
	return clamp01(score)
}

// withinBusinessHours checks the configured working window on weekdays.
func (e *Engine) withinBusinessHours(ts time.Time) bool {
	if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	h := ts.Hour()
	return h >= e.cfg.BusinessHoursStart && h < e.cfg.BusinessHoursEnd
}
