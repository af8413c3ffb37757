package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/recommend"
	"example.com/ai-shopmate/backend/internal/repository"
)

type ProductHandler struct {
	Products *repository.ProductRepository
}

// NewProductHandler создает обработчик каталога.
func NewProductHandler(products *repository.ProductRepository) *ProductHandler {
	return &ProductHandler{Products: products}
}

type ProductsResponse struct {
	Total    int              `json:"total"`
	Products []models.Product `json:"products"`
}

type CategoryResponse struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type RecommendationsResponse struct {
	ProductID       string             `json:"product_id"`
	Recommendations []recommend.Result `json:"recommendations"`
}

// List возвращает каталог с фильтром по категории и строке поиска.
func (h *ProductHandler) List(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	category := strings.TrimSpace(c.QueryParam("category"))
	if strings.EqualFold(category, "all") {
		category = ""
	}

	products, err := h.Products.Search(c.Request().Context(), query, category)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, ProductsResponse{Total: len(products), Products: products})
}

// Categories возвращает категории каталога.
func (h *ProductHandler) Categories(c echo.Context) error {
	categories, err := h.Products.Categories(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	response := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		response = append(response, CategoryResponse{Category: category.Category, Count: category.Count})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"categories": response})
}

// Get возвращает товар по идентификатору.
func (h *ProductHandler) Get(c echo.Context) error {
	product, err := h.Products.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "product not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, product)
}

// Recommendations подбирает похожие товары по общим тегам и категории.
func (h *ProductHandler) Recommendations(c echo.Context) error {
	limit, err := parseRecommendLimit(c.QueryParam("limit"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	reference, err := h.Products.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "product not found")
		}
		return serverError(c)
	}

	pool, err := h.Products.List(ctx)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, RecommendationsResponse{
		ProductID:       reference.ID,
		Recommendations: recommend.RecommendN(&reference, pool, limit),
	})
}

func parseRecommendLimit(raw string) (int, error) {
	return parseBoundedInt(raw, "limit", recommend.MaxResults, recommend.MaxResults)
}
