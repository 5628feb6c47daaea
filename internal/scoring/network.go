package scoring

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

const (
	maliciousIPBonus     = 0.8
	suspiciousIPBonus    = 0.4
	unusualPortBonus     = 0.3
	suspiciousProtoBonus = 0.5
	highRiskGeoBonus     = 0.3
)

// unusualPorts are destinations rarely seen in legitimate traffic.
var unusualPorts = map[int]struct{}{
	1337:  {},
	4444:  {},
	5554:  {},
	6667:  {},
	9001:  {},
	31337: {},
}

// suspiciousProtocols indicate tunnels or legacy remote control.
var suspiciousProtocols = map[string]struct{}{
	"irc":    {},
	"tor":    {},
	"telnet": {},
}

// highRiskGeographies per the operating threat model.
var highRiskGeographies = map[string]struct{}{
	"KP": {},
	"IR": {},
	"SY": {},
	"CU": {},
}

// networkComponent accumulates bonuses from the network observables. The
// reputation lookup is best-effort: a failure contributes nothing.
func (e *Engine) networkComponent(ctx context.Context, in schemas.ScoreInput) float64 {
	n := in.Network
	if n == nil {
		return 0
	}

	score := 0.0
	if n.SourceIP != "" {
		rep, err := e.reputation.LookupIP(ctx, n.SourceIP)
		if err != nil {
			e.log.Debug("IP reputation lookup degraded to neutral", zap.Error(err))
		} else {
			switch rep.Category {
			case schemas.ReputationMalicious:
				score += maliciousIPBonus
			case schemas.ReputationSuspicious:
				score += suspiciousIPBonus
			}
		}
	}
	if _, ok := unusualPorts[n.Port]; ok {
		score += unusualPortBonus
	}
	if _, ok := suspiciousProtocols[strings.ToLower(n.Protocol)]; ok {
		score += suspiciousProtoBonus
	}
	if _, ok := highRiskGeographies[strings.ToUpper(n.GeoCountry)]; ok {
		score += highRiskGeoBonus
	}
	return clamp01(score)
}
