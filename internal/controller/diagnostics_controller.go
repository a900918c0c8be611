package controller

import (
	"strings"

	"floodguard-be/internal/dto"
	"floodguard-be/internal/pkg/serverutils"
	"floodguard-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDiagnosticsController interface {
	RegisterRoutes(r fiber.Router)
	GetTraces(ctx *fiber.Ctx) error
}

type diagnosticsController struct {
	traces service.ITraceService
}

func NewDiagnosticsController(traces service.ITraceService) IDiagnosticsController {
	return &diagnosticsController{traces: traces}
}

func (c *diagnosticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/diagnostics")
	h.Get("/traces", c.GetTraces)
}

// GetTraces pages through recorded tool traces, newest first.
func (c *diagnosticsController) GetTraces(ctx *fiber.Ctx) error {
	level := strings.ToUpper(ctx.Query("level", ""))
	limit := ctx.QueryInt("limit", 50)
	offset := ctx.QueryInt("offset", 0)
	if limit < 1 || limit > 500 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "limit must be between 1 and 500"))
	}

	entries, err := c.traces.Recent(level, limit, offset)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(dto.TraceListResponse{Data: entries, Limit: limit, Offset: offset})
}
