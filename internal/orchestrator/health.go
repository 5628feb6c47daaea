package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

// HealthStatus is the outcome of a capability probe.
type HealthStatus struct {
	Capability schemas.Capability `json:"capability"`
	Healthy    bool               `json:"healthy"`
	Latency    time.Duration      `json:"latency"`
	Issue      string             `json:"issue,omitempty"`
}

const healthProbeInput = "health check: respond with OK"

// CheckHealth probes one capability with a lightweight call. Healthy means
// the call completed within the probe timeout. Probes share no state with
// running sessions and may run alongside them.
func (o *Orchestrator) CheckHealth(ctx context.Context, capability schemas.Capability) HealthStatus {
	timeout := o.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	_, err := o.executor.Invoke(probeCtx, capability, "health-probe", healthProbeInput)
	latency := time.Since(start)

	status := HealthStatus{
		Capability: capability,
		Healthy:    err == nil,
		Latency:    latency,
	}
	if err != nil {
		status.Issue = err.Error()
		o.log.Warn("Capability probe failed",
			zap.String("capability", string(capability)),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
	}
	return status
}
