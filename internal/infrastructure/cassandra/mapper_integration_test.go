//go:build integration
// +build integration

package cassandra

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	cassandrarepo "github.com/mrops-br/cassandra-products-api/internal/infrastructure/repository/cassandra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// openTestDAO connects to CASSANDRA_TEST_HOSTS and prepares a throwaway
// keyspace. The service itself never creates schema.
func openTestDAO(t *testing.T) *cassandrarepo.ProductRepository {
	t.Helper()

	hosts := os.Getenv("CASSANDRA_TEST_HOSTS")
	if hosts == "" {
		t.Skip("CASSANDRA_TEST_HOSTS not set")
	}

	cfg := testCassandraConfig()
	cfg.Hosts = strings.Split(hosts, ",")
	cfg.Port = 9042
	cfg.Consistency = gocql.One
	cfg.Timeout = 10 * time.Second
	cfg.ConnectTimeout = 10 * time.Second
	cfg.PageSize = 2

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	session, err := NewSession(cfg, logger, metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	t.Cleanup(session.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = session.ReleaseVersion(ctx)
	require.NoError(t, err)

	keyspace := fmt.Sprintf("products_it_%d", time.Now().UnixNano())
	x := session.Gocqlx()
	require.NoError(t, x.ExecStmt(fmt.Sprintf(
		`CREATE KEYSPACE %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`, keyspace)))
	t.Cleanup(func() { _ = x.ExecStmt("DROP KEYSPACE IF EXISTS " + keyspace) })
	require.NoError(t, x.ExecStmt(fmt.Sprintf(`CREATE TABLE %s.products (
		id uuid PRIMARY KEY, name text, description text, price double,
		quantity int, created_at timestamp, updated_at timestamp)`, keyspace)))

	dao, err := NewInventoryMapper(session, tracenoop.NewTracerProvider().Tracer("test"), logger).ProductDAO(keyspace)
	require.NoError(t, err)
	return dao
}

func newTestProduct(t *testing.T, name string) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(uuid.Nil, name, "integration", 9.5, 1)
	require.NoError(t, err)
	p.CreatedAt = p.CreatedAt.Truncate(time.Millisecond)
	p.UpdatedAt = p.CreatedAt
	return p
}

func collect(t *testing.T, dao *cassandrarepo.ProductRepository) map[uuid.UUID]*domain.Product {
	t.Helper()
	out := make(map[uuid.UUID]*domain.Product)
	for p, err := range dao.FindAll(context.Background()) {
		require.NoError(t, err)
		_, dup := out[p.ID]
		require.False(t, dup, "product %s returned twice", p.ID)
		out[p.ID] = p
	}
	return out
}

func TestIntegration_ProductDAO(t *testing.T) {
	dao := openTestDAO(t)
	ctx := context.Background()

	require.NoError(t, dao.HealthCheck(ctx))

	t.Run("save then find", func(t *testing.T) {
		p := newTestProduct(t, "lamp")
		require.NoError(t, dao.Save(ctx, p))

		got, err := dao.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Name, got.Name)
		assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("delete then find", func(t *testing.T) {
		p := newTestProduct(t, "chair")
		require.NoError(t, dao.Save(ctx, p))
		require.NoError(t, dao.Delete(ctx, p))

		_, err := dao.FindByID(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("update keeps count and created_at", func(t *testing.T) {
		p := newTestProduct(t, "table")
		require.NoError(t, dao.Save(ctx, p))
		before := len(collect(t, dao))

		changed := *p
		changed.Name = "standing table"
		changed.CreatedAt = time.Time{}
		changed.UpdatedAt = p.UpdatedAt.Add(time.Minute)
		require.NoError(t, dao.Update(ctx, &changed))

		assert.Len(t, collect(t, dao), before)
		got, err := dao.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "standing table", got.Name)
		assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("concurrent saves across pages", func(t *testing.T) {
		const n = 25
		products := make([]*domain.Product, n)
		for i := range products {
			products[i] = newTestProduct(t, fmt.Sprintf("bulk-%d", i))
		}

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for _, p := range products {
			wg.Add(1)
			go func(p *domain.Product) {
				defer wg.Done()
				errs <- dao.Save(ctx, p)
			}(p)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all := collect(t, dao)
		for _, p := range products {
			assert.Contains(t, all, p.ID)
		}
	})
}
