package cassandra

import (
	"fmt"
	"log/slog"

	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/config"
	cassandrarepo "github.com/mrops-br/cassandra-products-api/internal/infrastructure/repository/cassandra"
	"go.opentelemetry.io/otel/trace"
)

// InventoryMapper hands out DAOs bound to a keyspace. Several keyspaces can
// share one session.
type InventoryMapper struct {
	session *Session
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewInventoryMapper creates a mapper over an open session
func NewInventoryMapper(session *Session, tracer trace.Tracer, logger *slog.Logger) *InventoryMapper {
	return &InventoryMapper{
		session: session,
		tracer:  tracer,
		logger:  logger,
	}
}

// ProductDAO returns the product DAO for keyspace
func (m *InventoryMapper) ProductDAO(keyspace string) (*cassandrarepo.ProductRepository, error) {
	if !config.IsValidKeyspace(keyspace) {
		return nil, fmt.Errorf("keyspace %q is not a valid CQL identifier", keyspace)
	}

	return cassandrarepo.NewProductRepository(m.session.Gocqlx(), keyspace, m.tracer, m.logger), nil
}
