package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticChecker Check

func (c staticChecker) Check(context.Context) Check { return Check(c) }

func serve(t *testing.T, h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var response Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return response
}

func TestHealthz_AllDependenciesUp(t *testing.T) {
	handler := NewHandler("v1.4.0")
	handler.RegisterChecker("storage", NewPingChecker("postgres", time.Second, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("ping must run with deadline")
		}
		return nil
	}))
	handler.RegisterChecker("sessions", NewPingChecker("redis", 0, func(context.Context) error { return nil }))

	rec := serve(t, handler.ServeHTTP, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	response := decode(t, rec)
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "v1.4.0", response.Version)
	require.Len(t, response.Checks, 2)
	require.Equal(t, "postgres", response.Checks["storage"].Name)
	require.Equal(t, "redis", response.Checks["sessions"].Name)
}

func TestHealthz_StorageDownFailsReadiness(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewPingChecker("postgres", 0, func(context.Context) error {
		return errors.New("dial tcp 127.0.0.1:5432: connection refused")
	}))
	handler.RegisterChecker("sessions", staticChecker{Name: "redis", Status: StatusHealthy})

	rec := serve(t, handler.ServeHTTP, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	response := decode(t, rec)
	require.Equal(t, StatusUnhealthy, response.Status)
	require.Contains(t, response.Checks["storage"].Message, "connection refused")

	rec = serve(t, handler.ReadinessHandler, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "not ready", rec.Body.String())
}

func TestReadyz_DegradedStillServesTraffic(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", staticChecker{Name: "postgres", Status: StatusHealthy})
	handler.RegisterChecker("outbox", staticChecker{Name: "outbox", Status: StatusDegraded, Message: "publisher lagging"})

	response := handler.Evaluate(context.Background())
	require.Equal(t, StatusDegraded, response.Status)

	rec := serve(t, handler.ServeHTTP, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, handler.ReadinessHandler, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ready", rec.Body.String())
}

func TestRegisterChecker_ReplacesByName(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", staticChecker{Name: "memory", Status: StatusUnhealthy})
	handler.RegisterChecker("storage", staticChecker{Name: "postgres", Status: StatusHealthy})

	response := handler.Evaluate(context.Background())
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "postgres", response.Checks["storage"].Name)
}

func TestPingChecker_RespectsTimeout(t *testing.T) {
	checker := NewPingChecker("redis", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	started := time.Now()
	check := checker.Check(context.Background())
	require.Less(t, time.Since(started), time.Second)
	require.Equal(t, StatusUnhealthy, check.Status)
	require.Equal(t, context.DeadlineExceeded.Error(), check.Message)
}

func TestLivenessHandler(t *testing.T) {
	rec := serve(t, LivenessHandler, "/livez")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
