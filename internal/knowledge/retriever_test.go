package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

func newMocked(t *testing.T) (*PostgresRetriever, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresRetriever(mockPool, zap.NewNop()), mockPool
}

func docRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "content", "source", "confidence", "tags", "created_at", "score"})
}

func TestRetrieve(t *testing.T) {
	t.Run("applies all filters and ranks by score", func(t *testing.T) {
		r, mockPool := newMocked(t)

		created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		mockPool.ExpectQuery("SELECT id, content, source, confidence, tags, created_at, score").
			WithArgs("%T1059%", 0.8, []string{"ioc"}, pgxmock.AnyArg(), 5).
			WillReturnRows(docRows().
				AddRow("d1", "T1059 seen in campaign X", "feed-a", 0.92, []string{"ioc"}, created, 0.9).
				AddRow("d2", "older T1059 sighting", "feed-b", 0.81, []string{"ioc"}, created, 0.4))

		docs, err := r.Retrieve(context.Background(), "T1059", schemas.RetrievalFilters{
			MinConfidence: 0.8,
			Tags:          []string{"ioc"},
			Since:         created.Add(-30 * 24 * time.Hour),
		}, 5)

		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "d1", docs[0].ID)
		assert.Equal(t, 0.92, docs[0].Confidence)
		assert.Equal(t, []string{"ioc"}, docs[0].Tags)
	})

	t.Run("no filters still queries with content match and limit", func(t *testing.T) {
		r, mockPool := newMocked(t)

		mockPool.ExpectQuery("SELECT id, content, source, confidence, tags, created_at, score").
			WithArgs("%apt%", 10).
			WillReturnRows(docRows())

		docs, err := r.Retrieve(context.Background(), "apt", schemas.RetrievalFilters{}, 0)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("wraps query failure as retrieval error", func(t *testing.T) {
		r, mockPool := newMocked(t)

		mockPool.ExpectQuery("SELECT id, content, source, confidence, tags, created_at, score").
			WillReturnError(errors.New("index offline"))

		_, err := r.Retrieve(context.Background(), "anything", schemas.RetrievalFilters{}, 3)
		assert.ErrorIs(t, err, schemas.ErrRetrieval)
	})
}
