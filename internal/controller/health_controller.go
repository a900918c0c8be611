package controller

import (
	"floodguard-be/internal/dto"
	"floodguard-be/internal/pkg/serverutils"
	"floodguard-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ConnectionCounter reports live chat connections and remembered sessions.
type ConnectionCounter interface {
	Connections() int
	Sessions() int
}

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	projects service.IProjectService
	counter  ConnectionCounter
}

func NewHealthController(projects service.IProjectService, counter ConnectionCounter) IHealthController {
	return &healthController{projects: projects, counter: counter}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	total, embedded, err := c.projects.Readiness(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.ErrorResponse(503, err.Error()))
	}

	res := dto.HealthResponse{
		Status:         "healthy",
		ProjectsLoaded: total,
		EmbeddedCount:  embedded,
		VectorReady:    embedded > 0,
	}
	if c.counter != nil {
		res.Connections = c.counter.Connections()
		res.Sessions = c.counter.Sessions()
	}
	return ctx.JSON(res)
}
