package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := serve(HealthLive(cfg), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "dev", resp.Header().Get(envHeader))
}

func TestHealthReadyReportsFailedDependencies(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "prod"}}
	deps := map[string]Pinger{
		"db":    pingerFunc(func(context.Context) error { return nil }),
		"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	}

	resp := serve(HealthReady(cfg, quietLogger(), deps), httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	body := decodeError(t, resp)
	assert.Equal(t, string(pkgerrors.CodeDependency), body.Error.Code)
	assert.Equal(t, "connection refused", body.Error.Details["redis"])
	assert.NotContains(t, body.Error.Details, "db")
}

func TestHealthReadyAllUp(t *testing.T) {
	cfg := &config.Config{}
	deps := map[string]Pinger{"db": pingerFunc(func(context.Context) error { return nil })}
	resp := serve(HealthReady(cfg, quietLogger(), deps), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}
