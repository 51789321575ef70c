package cassandra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gocql/gocql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// queryObserver records the latency of every statement sent to the cluster
type queryObserver struct {
	duration metric.Float64Histogram
	logger   *slog.Logger
}

func newQueryObserver(meter metric.Meter, logger *slog.Logger) *queryObserver {
	duration, err := meter.Float64Histogram(
		"db.client.operation.duration",
		metric.WithDescription("Duration of Cassandra statements"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("Failed to create Cassandra duration histogram", slog.String("error", err.Error()))
	}

	return &queryObserver{duration: duration, logger: logger}
}

func (o *queryObserver) ObserveQuery(ctx context.Context, q gocql.ObservedQuery) {
	outcome := "success"
	if q.Err != nil {
		outcome = "error"
		o.logger.WarnContext(ctx, "Cassandra statement failed",
			slog.String("keyspace", q.Keyspace),
			slog.String("statement", q.Statement),
			slog.Int("attempt", q.Attempt),
			slog.String("error", q.Err.Error()),
		)
	}

	if o.duration == nil {
		return
	}

	o.duration.Record(ctx, q.End.Sub(q.Start).Seconds(),
		metric.WithAttributes(
			attribute.String("db.system", "cassandra"),
			attribute.String("db.namespace", q.Keyspace),
			attribute.String("outcome", outcome),
		),
	)
}

// driverLogger routes gocql's printf-style messages into slog
type driverLogger struct {
	logger *slog.Logger
}

func newDriverLogger(logger *slog.Logger) *driverLogger {
	return &driverLogger{logger: logger.With(slog.String("component", "gocql"))}
}

func (l *driverLogger) Print(v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprint(v...)))
}

func (l *driverLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *driverLogger) Println(v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintln(v...)))
}
