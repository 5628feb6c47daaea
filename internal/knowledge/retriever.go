package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

// DBPool is the subset of pgxpool.Pool the retriever needs; pgxmock
// satisfies it in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRetriever implements schemas.KnowledgeRetriever against the
// knowledge_docs index. Filter pushdown happens in SQL; ranking uses the
// stored score column. Callers treat any returned error as an empty result
// set, so this type never needs to degrade on its own.
type PostgresRetriever struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresRetriever wraps a pgx pool.
func NewPostgresRetriever(pool DBPool, logger *zap.Logger) *PostgresRetriever {
	return &PostgresRetriever{pool: pool, log: logger.Named("knowledge")}
}

// Retrieve returns up to maxResults documents matching the query text and
// filters, ranked by score descending.
func (r *PostgresRetriever) Retrieve(ctx context.Context, query string, filters schemas.RetrievalFilters, maxResults int) ([]schemas.Document, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, fmt.Sprintf("content ILIKE %s", arg("%"+query+"%")))
	if filters.MinConfidence > 0 {
		conds = append(conds, fmt.Sprintf("confidence >= %s", arg(filters.MinConfidence)))
	}
	if len(filters.Tags) > 0 {
		conds = append(conds, fmt.Sprintf("tags @> %s", arg(filters.Tags)))
	}
	if !filters.Since.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filters.Since.UTC())))
	}
	if !filters.Until.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filters.Until.UTC())))
	}

	sql := fmt.Sprintf(`
		SELECT id, content, source, confidence, tags, created_at, score
		FROM knowledge_docs
		WHERE %s
		ORDER BY score DESC
		LIMIT %s;`, strings.Join(conds, " AND "), arg(maxResults))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schemas.ErrRetrieval, err)
	}
	defer rows.Close()

	var docs []schemas.Document
	for rows.Next() {
		var (
			doc     schemas.Document
			tags    []string
			created time.Time
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &doc.Confidence, &tags, &created, &doc.Score); err != nil {
			return nil, fmt.Errorf("%w: scanning document row: %v", schemas.ErrRetrieval, err)
		}
		doc.Tags = tags
		doc.CreatedAt = created
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating document rows: %v", schemas.ErrRetrieval, err)
	}

	r.log.Debug("Knowledge retrieval complete",
		zap.String("query", query),
		zap.Int("results", len(docs)),
	)
	return docs, nil
}
