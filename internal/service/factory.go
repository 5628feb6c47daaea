package service

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/capability"
	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/correlator"
	"github.com/sentra-sec/sentra/internal/enrichment"
	"github.com/sentra-sec/sentra/internal/knowledge"
	"github.com/sentra-sec/sentra/internal/orchestrator"
	"github.com/sentra-sec/sentra/internal/publish"
	"github.com/sentra-sec/sentra/internal/scoring"
	"github.com/sentra-sec/sentra/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Build performs the full dependency injection for one process. The caller
// owns the returned Components and must call Shutdown.
func Build(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	var initErr error
	defer func() {
		if initErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initErr))
			components.Shutdown()
		}
	}()

	// Database pool, schema and stores.
	poolCfg, err := pgxpool.ParseConfig(cfg.Database().DSN())
	if err != nil {
		initErr = fmt.Errorf("parsing database config: %w", err)
		return nil, initErr
	}
	if cfg.Database().MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database().MaxConns)
	}
	poolCfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		initErr = fmt.Errorf("creating database connection pool: %w", err)
		return nil, initErr
	}
	components.dbPool = pool

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	if err := st.EnsureSchema(ctx); err != nil {
		initErr = err
		return nil, initErr
	}
	components.Store = st

	// Capability endpoints.
	registry, err := capability.NewRegistry(cfg.Capabilities(), logger)
	if err != nil {
		initErr = fmt.Errorf("building capability registry: %w", err)
		return nil, initErr
	}
	components.Registry = registry

	// Best-effort enrichment lookups.
	reputation := enrichment.NewReputationService(cfg.Reputation(), logger)

	// Scoring engine over the knowledge index.
	retriever := knowledge.NewPostgresRetriever(pool, logger)
	engine := scoring.NewEngine(retriever, registry, reputation, cfg.Scoring(), logger)
	components.Scoring = engine

	// Event channel. A missing NATS URL degrades to no publishing rather
	// than refusing to start; processing results still persist.
	if url := cfg.Events().NATSURL; url != "" {
		publisher, nc, err := publish.Connect(url, logger)
		if err != nil {
			initErr = err
			return nil, initErr
		}
		components.natsConn = nc
		components.Channel = publisher
	} else {
		logger.Warn("No NATS URL configured; processed events will not be published.")
	}

	// Orchestrator dispatches through the scoring-aware executor so
	// anomaly-scoring tasks run locally instead of round-tripping HTTP.
	executor := newScoringExecutor(engine, registry)
	components.Orchestrator = orchestrator.New(executor, st, st, cfg.Orchestrator(), logger)

	components.Processor = correlator.NewProcessor(
		engine, st, components.Channel, reputation, reputation,
		cfg.Correlator(), cfg.Events().SubjectPrefix, logger,
	)

	logger.Info("Components initialized.",
		zap.Int("capabilities", len(registry.Registered())),
		zap.Bool("publishing", components.Channel != nil),
	)
	return components, nil
}

// scoringExecutor routes anomaly-scoring and intel-correlation
// invocations through the local scoring engine when their input is a
// structured scoring request; everything else passes through to the
// HTTP registry.
type scoringExecutor struct {
	engine   *scoring.Engine
	delegate schemas.CapabilityExecutor
}

func newScoringExecutor(engine *scoring.Engine, delegate schemas.CapabilityExecutor) *scoringExecutor {
	return &scoringExecutor{engine: engine, delegate: delegate}
}

func (s *scoringExecutor) Invoke(ctx context.Context, cap schemas.Capability, sessionID, input string) (string, error) {
	if cap == schemas.CapabilityAnomalyScoring || cap == schemas.CapabilityIntelCorrelation {
		var in schemas.ScoreInput
		if err := json.UnmarshalFromString(input, &in); err == nil && in.Severity != "" {
			score := s.engine.Score(ctx, in)
			out, err := json.MarshalToString(score)
			if err != nil {
				return "", fmt.Errorf("serializing threat score: %w", err)
			}
			return out, nil
		}
	}
	return s.delegate.Invoke(ctx, cap, sessionID, input)
}
