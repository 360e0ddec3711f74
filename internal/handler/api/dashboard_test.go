package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xlogger "TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

type stubConn struct{ up bool }

func (s stubConn) IsConnected() bool { return s.up }

func doRequest(t *testing.T, h *DashboardHandler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth(t *testing.T) {
	h := NewDashboardHandler(xlogger.Nop(), store.NewMemoryStore(), stubConn{up: true})

	rec, body := doRequest(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(http.StatusOK), body["status"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["store"])
	assert.Equal(t, true, data["stream"])
}

func TestPriceEmptyStore(t *testing.T) {
	h := NewDashboardHandler(xlogger.Nop(), store.NewMemoryStore(), stubConn{})

	_, body := doRequest(t, h, "/api/v1/price")
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}

func TestPrice(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, ms.Set(ctx, store.KeyLastPrice, "85000.5"))
	require.NoError(t, ms.Set(ctx, store.KeyLastVolume, "0.01"))
	require.NoError(t, ms.LPush(ctx, store.KeyMovementHistory, "85000.5"))
	h := NewDashboardHandler(xlogger.Nop(), ms, stubConn{})

	rec, body := doRequest(t, h, "/api/v1/price")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "85000.5", data["price"])
	assert.Equal(t, "0.01", data["volume"])
}

func TestVolatilityDefaultsToZero(t *testing.T) {
	h := NewDashboardHandler(xlogger.Nop(), store.NewMemoryStore(), stubConn{})

	rec, body := doRequest(t, h, "/api/v1/volatility")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "0", data[store.KeyVolatility1m])
	assert.Equal(t, "0", data[store.KeyAcceleration1m])
}

func TestRegimeDefaults(t *testing.T) {
	h := NewDashboardHandler(xlogger.Nop(), store.NewMemoryStore(), stubConn{})

	rec, body := doRequest(t, h, "/api/v1/regime")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "unknown", data["regime"])
	assert.Equal(t, "1", data["multiplier"])
}

func TestTrapsWindowFilter(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, ms.ZAdd(ctx, store.KeyTrapQueue, float64(now.Add(-2*time.Hour).Unix()), `{"kind":"old"}`))
	require.NoError(t, ms.ZAdd(ctx, store.KeyTrapQueue, float64(now.Add(-time.Minute).Unix()), `{"kind":"fresh"}`))
	h := NewDashboardHandler(xlogger.Nop(), ms, stubConn{})

	rec, body := doRequest(t, h, "/api/v1/traps?minutes=30")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
}

func TestTrapsRejectsBadMinutes(t *testing.T) {
	h := NewDashboardHandler(xlogger.Nop(), store.NewMemoryStore(), stubConn{})

	_, body := doRequest(t, h, "/api/v1/traps?minutes=-5")
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
}

func TestHFModeDefaults(t *testing.T) {
	h := NewDashboardHandler(xlogger.Nop(), store.NewMemoryStore(), stubConn{})

	rec, body := doRequest(t, h, "/api/v1/hf-mode")
	assert.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "0", data["active"])
	assert.Equal(t, "1", data["multiplier"])
}
