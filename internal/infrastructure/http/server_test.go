package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mrops-br/cassandra-products-api/internal/app/service"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/config"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/http/handler"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := tracenoop.NewTracerProvider().Tracer("test")
	meterProvider := metricnoop.NewMeterProvider()

	repo := memory.NewProductRepository(tracer, logger)
	svc := service.NewProductService(repo, tracer, meterProvider.Meter("test"), logger)

	cfg := &config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         "0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}
	return NewServer(cfg, handler.NewProductHandler(svc, logger), logger, meterProvider)
}

func TestServer_Routes(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/products", "application/json", strings.NewReader(`{"name":"Globe","price":30}`))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)
	location := res.Header.Get("Location")
	require.NotEmpty(t, location)

	res, err = http.Get(ts.URL + location)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+location, nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	for _, path := range []string{"/health", "/metrics", "/products"} {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}

	res, err = http.Get(ts.URL + "/unknown")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServer_ConfiguresTimeouts(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, "127.0.0.1:0", s.httpServer.Addr)
	assert.Equal(t, time.Second, s.httpServer.ReadTimeout)
	assert.Equal(t, time.Second, s.httpServer.WriteTimeout)
	assert.Equal(t, time.Second, s.httpServer.IdleTimeout)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := newTestServer(t)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	// give ListenAndServe a moment before asking it to stop
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
