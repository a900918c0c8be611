package controller

import (
	"errors"

	"floodguard-be/internal/pkg/serverutils"
	"floodguard-be/internal/service"
	"floodguard-be/pkg/retrieval"

	"github.com/gofiber/fiber/v2"
)

type ISearchController interface {
	RegisterRoutes(r fiber.Router)
	Search(ctx *fiber.Ctx) error
	GetProject(ctx *fiber.Ctx) error
}

type searchController struct {
	service service.IProjectService
}

func NewSearchController(service service.IProjectService) ISearchController {
	return &searchController{service: service}
}

func (c *searchController) RegisterRoutes(r fiber.Router) {
	r.Post("/search", c.Search)
	r.Get("/projects/:id", c.GetProject)
}

func (c *searchController) Search(ctx *fiber.Ctx) error {
	var req retrieval.SearchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Search(ctx.UserContext(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSearch) {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(res)
}

func (c *searchController) GetProject(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	if id == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "project id is required"))
	}

	p, err := c.service.GetByID(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(p)
}
