package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"NiftyPulse/internal/domain/models"
	domrepo "NiftyPulse/internal/domain/repository"
	"NiftyPulse/internal/usecase"
	xhttp "NiftyPulse/pkg/http"
	xlogger "NiftyPulse/pkg/logger"
)

// Enqueuer accepts background jobs (pkg/queue.RedisQueue).
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// HealthChecker is anything with a cheap liveness probe.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// MarketEchoHandler serves the read API over the engine's stores.
type MarketEchoHandler struct {
	logger  *xlogger.Logger
	candles *usecase.CandlesUseCase
	trades  *usecase.TradesUseCase
	views   *usecase.MarketViewUseCase
	queue   Enqueuer
	health  HealthChecker
	known   map[string]struct{}
	mw      []echo.MiddlewareFunc
}

// NewMarketEchoHandler wires the read routes. queue and health may be nil.
func NewMarketEchoHandler(logger *xlogger.Logger, candles *usecase.CandlesUseCase, trades *usecase.TradesUseCase,
	views *usecase.MarketViewUseCase, queue Enqueuer, health HealthChecker, resolver domrepo.SymbolResolver,
	mw ...echo.MiddlewareFunc) *MarketEchoHandler {
	known := make(map[string]struct{})
	for _, t := range resolver.Tickers() {
		known[t] = struct{}{}
	}
	return &MarketEchoHandler{
		logger:  logger,
		candles: candles,
		trades:  trades,
		views:   views,
		queue:   queue,
		health:  health,
		known:   known,
		mw:      mw,
	}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api", h.mw...)
	g.GET("/candles", h.Candles)
	g.GET("/trades", h.Trades)
	g.GET("/regime", h.Regime)
	g.GET("/chain", h.Chain)
	g.POST("/backfill", h.Backfill)
}

func (h *MarketEchoHandler) symbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := h.known[s]; !ok {
		return "", xhttp.NotFoundErrorf("unknown symbol %s", raw)
	}
	return s, nil
}

func (h *MarketEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym, err := h.symbol(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:   sym,
		Date:     req.Date,
		Interval: domrepo.Interval(req.Interval),
		Limit:    req.Limit,
	})
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.String("symbol", sym), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load candles").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym, err := h.symbol(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.trades.GetTrades(c.Request().Context(), sym, req.Date)
	if err != nil {
		h.logger.Error("trades usecase error", xlogger.String("symbol", sym), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load trades").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Regime(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym, err := h.symbol(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.views.GetView(c.Request().Context(), sym)
	if err != nil {
		h.logger.Error("regime usecase error", xlogger.String("symbol", sym), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load regime").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Chain(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym, err := h.symbol(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.views.GetChain(c.Request().Context(), sym)
	if errors.Is(err, usecase.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load chain").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Backfill(c echo.Context) error {
	req := &models.BackfillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym := strings.ToUpper(req.Symbol)
	if sym != usecase.BackfillAll {
		var err error
		if sym, err = h.symbol(req.Symbol); err != nil {
			return xhttp.AppErrorResponse(c, err)
		}
	}
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("job queue disabled"))
	}
	if err := h.queue.Enqueue(c.Request().Context(), usecase.BackfillJobType, usecase.BackfillPayload{Symbol: sym}); err != nil {
		h.logger.Error("backfill enqueue error", xlogger.String("symbol", sym), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to enqueue backfill").WithError(err))
	}
	h.logger.Info("backfill enqueued", xlogger.String("symbol", sym))
	return xhttp.DataResponse(c, http.StatusAccepted, usecase.BackfillPayload{Symbol: sym})
}

func (h *MarketEchoHandler) Health(c echo.Context) error {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Health(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
