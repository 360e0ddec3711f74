package api

import (
	"encoding/json"
	"strconv"
	"time"

	xhttp "TrapFlow/pkg/http"
	xlogger "TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"

	"github.com/labstack/echo/v4"
)

// ConnStatus reports upstream connectivity for the health endpoint.
type ConnStatus interface {
	IsConnected() bool
}

// DashboardHandler serves the read-only view of the store bus to the
// dashboard. It never writes any key.
type DashboardHandler struct {
	logger *xlogger.Logger
	st     store.Store
	conn   ConnStatus
}

func NewDashboardHandler(logger *xlogger.Logger, st store.Store, conn ConnStatus) *DashboardHandler {
	return &DashboardHandler{logger: logger, st: st, conn: conn}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api/v1")
	g.GET("/price", h.Price)
	g.GET("/volatility", h.Volatility)
	g.GET("/regime", h.Regime)
	g.GET("/fibonacci", h.Fibonacci)
	g.GET("/traps", h.Traps)
	g.GET("/hf-mode", h.HFMode)
}

func (h *DashboardHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	storeOK := h.st.Ping(ctx) == nil
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"store":  storeOK,
		"stream": h.conn != nil && h.conn.IsConnected(),
	})
}

func (h *DashboardHandler) Price(c echo.Context) error {
	ctx := c.Request().Context()
	price, err := h.st.Get(ctx, store.KeyLastPrice)
	if err != nil {
		return xhttp.NotFoundResponse(c, "no price observed yet")
	}
	volume, _ := h.st.Get(ctx, store.KeyLastVolume)
	updated, _ := h.st.Get(ctx, store.KeyLastUpdateTime)
	history, _ := h.st.LRange(ctx, store.KeyMovementHistory, 0, 99)

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"price":      price,
		"volume":     volume,
		"updated_at": updated,
		"history":    history,
	})
}

func (h *DashboardHandler) Volatility(c echo.Context) error {
	ctx := c.Request().Context()
	out := map[string]string{}
	for _, key := range []string{store.KeyVolatility1m, store.KeyVolatility5m, store.KeyAcceleration1m} {
		v, err := h.st.Get(ctx, key)
		if err != nil {
			v = "0"
		}
		out[key] = v
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *DashboardHandler) Regime(c echo.Context) error {
	ctx := c.Request().Context()
	state, err := h.st.Get(ctx, store.KeyMarketRegime)
	if err != nil {
		state = "unknown"
	}
	mult, err := h.st.Get(ctx, store.KeyRegimeMultiplier)
	if err != nil {
		mult = "1"
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"regime":     state,
		"multiplier": mult,
	})
}

func (h *DashboardHandler) Fibonacci(c echo.Context) error {
	ctx := c.Request().Context()
	out := map[string]interface{}{}

	if raw, err := h.st.Get(ctx, store.KeyRealtimeFib); err == nil {
		var levels interface{}
		if err := json.Unmarshal([]byte(raw), &levels); err == nil {
			out["levels"] = levels
		}
	}
	if raw, err := h.st.Get(ctx, store.KeyFibConfluence); err == nil {
		var confluence interface{}
		if err := json.Unmarshal([]byte(raw), &confluence); err == nil {
			out["confluence"] = confluence
		}
	}
	if len(out) == 0 {
		return xhttp.NotFoundResponse(c, "no fibonacci analysis yet")
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *DashboardHandler) Traps(c echo.Context) error {
	ctx := c.Request().Context()

	minutes := 60
	if q := c.QueryParam("minutes"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			return xhttp.BadRequestResponse(c, "minutes must be a positive integer")
		}
		minutes = n
	}

	since := time.Now().Add(-time.Duration(minutes) * time.Minute).Unix()
	members, err := h.st.ZRangeByScore(ctx, store.KeyTrapQueue, float64(since), float64(time.Now().Unix()+1))
	if err != nil {
		h.logger.Error("trap queue read failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}

	events := make([]json.RawMessage, 0, len(members))
	for _, m := range members {
		events = append(events, json.RawMessage(m))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"minutes": minutes,
		"count":   len(events),
		"events":  events,
	})
}

func (h *DashboardHandler) HFMode(c echo.Context) error {
	ctx := c.Request().Context()
	active, err := h.st.Get(ctx, store.KeyHFModeActive)
	if err != nil {
		active = "0"
	}
	mult, err := h.st.Get(ctx, store.KeyHFMultiplier)
	if err != nil {
		mult = "1"
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"active":     active,
		"multiplier": mult,
	})
}
