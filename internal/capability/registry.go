package capability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
)

// Registry implements schemas.CapabilityExecutor over a closed dispatch
// table: one client per known capability, built once at construction. Adding
// a capability means extending the schemas enum and its endpoint config, not
// adding string branches.
type Registry struct {
	clients map[schemas.Capability]*Client
	logger  *zap.Logger
}

// NewRegistry builds clients for every configured endpoint. Endpoint keys in
// the config use lowercase names ("threat_hunting"); they must resolve to a
// member of the closed capability set.
func NewRegistry(cfg config.CapabilitiesConfig, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		clients: make(map[schemas.Capability]*Client, len(cfg.Endpoints)),
		logger:  logger.Named("capability_registry"),
	}

	for name, ep := range cfg.Endpoints {
		cap := schemas.Capability(strings.ToUpper(name))
		if !cap.Valid() {
			return nil, fmt.Errorf("unknown capability %q in endpoint config", name)
		}
		client, err := NewClient(cap, ep, cfg.DefaultTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("building client for %s: %w", cap, err)
		}
		r.clients[cap] = client
	}

	r.logger.Info("Capability clients registered", zap.Int("count", len(r.clients)))
	return r, nil
}

// Invoke dispatches to the client registered for the capability.
func (r *Registry) Invoke(ctx context.Context, cap schemas.Capability, sessionID, input string) (string, error) {
	client, ok := r.clients[cap]
	if !ok {
		return "", fmt.Errorf("%w: no endpoint configured for %s", schemas.ErrCapabilityUnavailable, cap)
	}
	return client.Invoke(ctx, sessionID, input)
}

// Registered lists the capabilities this registry can dispatch to.
func (r *Registry) Registered() []schemas.Capability {
	caps := make([]schemas.Capability, 0, len(r.clients))
	for _, c := range schemas.AllCapabilities() {
		if _, ok := r.clients[c]; ok {
			caps = append(caps, c)
		}
	}
	return caps
}
