// Package service is the composition root: it wires configuration into the
// concrete stores, clients, engines and orchestrator the commands run.
package service

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/capability"
	"github.com/sentra-sec/sentra/internal/correlator"
	"github.com/sentra-sec/sentra/internal/observability"
	"github.com/sentra-sec/sentra/internal/orchestrator"
	"github.com/sentra-sec/sentra/internal/scoring"
	"github.com/sentra-sec/sentra/internal/store"
)

// Components holds every initialized collaborator. The struct centralizes
// lifecycle management so commands create and tear down the stack the same
// way.
type Components struct {
	Store        *store.Store
	Registry     *capability.Registry
	Scoring      *scoring.Engine
	Orchestrator *orchestrator.Orchestrator
	Processor    *correlator.Processor
	Channel      schemas.EventChannel

	dbPool   *pgxpool.Pool
	natsConn *nats.Conn
}

// Shutdown releases connections in reverse dependency order. Safe to call
// on a partially initialized struct.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()

	if c.natsConn != nil {
		c.natsConn.Drain()
		logger.Debug("NATS connection drained.")
	}
	if c.dbPool != nil {
		c.dbPool.Close()
		logger.Debug("Database connection pool closed.")
	}
	logger.Info("All components shut down.")
}
