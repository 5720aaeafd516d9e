package api

import (
	"context"
	"errors"
	"strings"

	"CandleSync/internal/domain/models"
	"CandleSync/internal/usecase"
	xhttp "CandleSync/pkg/http"
	xlogger "CandleSync/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SyncEchoHandler exposes manual triggering and inspection of synchronization runs.
type SyncEchoHandler struct {
	logger *xlogger.Logger
	job    *usecase.SyncJob
	store  HealthChecker
}

func NewSyncEchoHandler(logger *xlogger.Logger, job *usecase.SyncJob, store HealthChecker) *SyncEchoHandler {
	return &SyncEchoHandler{logger: logger, job: job, store: store}
}

func (h *SyncEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/sync", h.Sync)
	g.GET("/sync/last", h.Last)
	g.GET("/health", h.Health)
}

func (h *SyncEchoHandler) Sync(c echo.Context) error {
	req := &models.SyncRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := normalizeSymbols(req.Symbols)
	ctx := c.Request().Context()

	if req.Wait != nil && !*req.Wait {
		if err := h.job.Start(ctx, "api", symbols); err != nil {
			return h.syncError(c, err)
		}
		return xhttp.AcceptedResponse(c, map[string]interface{}{"symbols": symbols})
	}

	report, err := h.job.Execute(ctx, "api", symbols)
	if err != nil {
		return h.syncError(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *SyncEchoHandler) Last(c echo.Context) error {
	report, err := h.job.LastReport(c.Request().Context())
	if err != nil {
		if errors.Is(err, usecase.ErrNoReport) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
		}
		h.logger.Error("last report lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *SyncEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Warn("store health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("candle store unreachable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"store": "ok"})
}

func (h *SyncEchoHandler) syncError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
	case errors.Is(err, usecase.ErrNoSeries):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%s", err.Error()).WithParam("field", "symbols"))
	default:
		h.logger.Error("sync trigger failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
