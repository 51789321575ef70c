package cassandra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gocql/gocql"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/config"
	"github.com/scylladb/gocqlx/v2"
	"go.opentelemetry.io/otel/metric"
)

// Session owns the single process-wide connection to the cluster. It is
// safe for concurrent use and must be closed on shutdown.
type Session struct {
	session gocqlx.Session
	logger  *slog.Logger
}

// NewClusterConfig translates service configuration into driver configuration
func NewClusterConfig(cfg *config.CassandraConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Port = cfg.Port
	cluster.Consistency = cfg.Consistency
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.ProtoVersion = cfg.ProtoVersion
	cluster.PageSize = cfg.PageSize

	if cfg.LocalDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(cfg.LocalDC))
	} else {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	}

	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	return cluster
}

// NewSession connects to the cluster. The session is not bound to a keyspace;
// DAOs qualify their tables with the keyspace they were built for.
func NewSession(cfg *config.CassandraConfig, logger *slog.Logger, meter metric.Meter) (*Session, error) {
	// gocql only exposes a package-level logger.
	gocql.Logger = newDriverLogger(logger)

	cluster := NewClusterConfig(cfg)
	cluster.QueryObserver = newQueryObserver(meter, logger)

	logger.Info("Connecting to Cassandra",
		slog.Any("hosts", cfg.Hosts),
		slog.Int("port", cfg.Port),
		slog.String("consistency", cfg.Consistency.String()),
	)

	session, err := gocqlx.WrapSession(cluster.CreateSession())
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	return &Session{session: session, logger: logger}, nil
}

// Gocqlx returns the wrapped session used to build DAOs
func (s *Session) Gocqlx() gocqlx.Session {
	return s.session
}

// ReleaseVersion reports the Cassandra version of the coordinator node
func (s *Session) ReleaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := s.session.Session.Query(healthCheckQuery).WithContext(ctx).Scan(&version); err != nil {
		return "", fmt.Errorf("cassandra health check failed: %w", err)
	}
	return version, nil
}

// Close releases every connection held by the session
func (s *Session) Close() {
	s.session.Close()
	s.logger.Info("Cassandra session closed")
}

const healthCheckQuery = "SELECT release_version FROM system.local"
