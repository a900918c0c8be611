package controller

import (
	"floodguard-be/internal/dto"
	"floodguard-be/internal/pkg/serverutils"
	"floodguard-be/internal/service"
	"floodguard-be/pkg/details"
	"floodguard-be/pkg/protocol"
	"floodguard-be/pkg/retrieval"

	"github.com/gofiber/fiber/v2"
)

const defaultNewsLimit = 5

type INewsController interface {
	RegisterRoutes(r fiber.Router)
	GetNews(ctx *fiber.Ctx) error
}

type newsController struct {
	service service.INewsService
}

func NewNewsController(service service.INewsService) INewsController {
	return &newsController{service: service}
}

func (c *newsController) RegisterRoutes(r fiber.Router) {
	r.Get("/news", c.GetNews)
}

// GetNews searches articles for a project's description, contractor and
// location. All parameters are optional.
func (c *newsController) GetNews(ctx *fiber.Ctx) error {
	var req dto.NewsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid query parameters"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = defaultNewsLimit
	}

	criteria := details.NewsCriteria{
		Query:      req.Query,
		Contractor: req.Contractor,
		Location:   req.Location,
		ProjectID:  req.ProjectID,
	}
	articles, err := c.service.Search(ctx.UserContext(), criteria, req.Limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	if articles == nil {
		articles = []protocol.Article{}
	}
	return ctx.JSON(retrieval.NewsResult{Articles: articles, Count: len(articles)})
}
