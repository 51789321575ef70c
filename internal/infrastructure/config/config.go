package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/joho/godotenv"
)

const (
	DriverCassandra = "cassandra"
	DriverMemory    = "memory"
)

var keyspacePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

type Config struct {
	Server     ServerConfig
	Cassandra  CassandraConfig
	OTLP       OTLPConfig
	Repository RepositoryConfig
	LogLevel   string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CassandraConfig holds the driver settings. Keyspace is the "keyspace.one"
// property the product DAO is scoped to.
type CassandraConfig struct {
	Hosts          []string
	Port           int
	Keyspace       string
	LocalDC        string
	Username       string
	Password       string
	Consistency    gocql.Consistency
	Timeout        time.Duration
	ConnectTimeout time.Duration
	ProtoVersion   int
	PageSize       int
}

type OTLPConfig struct {
	Endpoint      string
	ServiceName   string
	Environment   string
	ExportEnabled bool
}

type RepositoryConfig struct {
	Driver string
}

// LoadConfig loads configuration from an optional .env file and environment variables
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	consistency, err := gocql.ParseConsistencyWrapper(getEnv("CASSANDRA_CONSISTENCY", "LOCAL_QUORUM"))
	if err != nil {
		return nil, fmt.Errorf("invalid CASSANDRA_CONSISTENCY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Cassandra: CassandraConfig{
			Hosts:          splitList(getEnv("CASSANDRA_HOSTS", "127.0.0.1")),
			Port:           getEnvInt("CASSANDRA_PORT", 9042),
			Keyspace:       getEnv("KEYSPACE_ONE", "inventory"),
			LocalDC:        getEnv("CASSANDRA_LOCAL_DC", ""),
			Username:       getEnv("CASSANDRA_USERNAME", ""),
			Password:       getEnv("CASSANDRA_PASSWORD", ""),
			Consistency:    consistency,
			Timeout:        getEnvDuration("CASSANDRA_TIMEOUT", 10*time.Second),
			ConnectTimeout: getEnvDuration("CASSANDRA_CONNECT_TIMEOUT", 10*time.Second),
			ProtoVersion:   getEnvInt("CASSANDRA_PROTO_VERSION", 4),
			PageSize:       getEnvInt("CASSANDRA_PAGE_SIZE", 500),
		},
		OTLP: OTLPConfig{
			Endpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:   getEnv("OTEL_SERVICE_NAME", "products-api"),
			Environment:   getEnv("OTEL_ENVIRONMENT", "development"),
			ExportEnabled: getEnvBool("OTEL_EXPORT_ENABLED", true),
		},
		Repository: RepositoryConfig{
			Driver: strings.ToLower(getEnv("REPOSITORY_DRIVER", DriverCassandra)),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values and reports every problem found
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port cannot be empty"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got: %v", c.Server.ShutdownTimeout))
	}

	switch c.Repository.Driver {
	case DriverCassandra, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown repository driver %q", c.Repository.Driver))
	}

	if err := c.Cassandra.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate checks the driver settings
func (c *CassandraConfig) Validate() error {
	if !IsValidKeyspace(c.Keyspace) {
		return fmt.Errorf("keyspace %q is not a valid CQL identifier", c.Keyspace)
	}
	if len(c.Hosts) == 0 {
		return errors.New("at least one cassandra host must be specified")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("cassandra port out of range: %d", c.Port)
	}
	if c.Timeout <= 0 || c.ConnectTimeout <= 0 {
		return fmt.Errorf("cassandra timeouts must be positive, got: %v / %v", c.Timeout, c.ConnectTimeout)
	}
	if c.ProtoVersion < 3 || c.ProtoVersion > 5 {
		return fmt.Errorf("protocol version must be between 3 and 5, got: %d", c.ProtoVersion)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got: %d", c.PageSize)
	}
	return nil
}

// IsValidKeyspace reports whether name can be used unquoted as a keyspace
func IsValidKeyspace(name string) bool {
	return keyspacePattern.MatchString(name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
