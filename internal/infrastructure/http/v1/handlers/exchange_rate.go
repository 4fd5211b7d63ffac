package handlers

import (
	"github.com/gin-gonic/gin"

	"billfold/internal/core/id"
	"billfold/internal/domain/exchange"
	"billfold/internal/infrastructure/http/v1/dto"
)

// ExchangeRateHandler handles HTTP requests for exchange rates.
type ExchangeRateHandler struct {
	*BaseHandler
	repo exchange.Repository
}

// NewExchangeRateHandler creates a new exchange rate handler.
func NewExchangeRateHandler(base *BaseHandler, repo exchange.Repository) *ExchangeRateHandler {
	return &ExchangeRateHandler{BaseHandler: base, repo: repo}
}

// RegisterRoutes registers exchange rate routes.
func (h *ExchangeRateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
}

// Create handles POST /exchange-rates.
func (h *ExchangeRateHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateExchangeRateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rate := req.ToEntity()
	if err := rate.Validate(ctx); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.repo.Create(ctx, rate); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromExchangeRate(rate))
}

// List handles GET /exchange-rates - list with filtering.
func (h *ExchangeRateHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := exchange.ListFilter{
		FromCurrency: c.Query("fromCurrency"),
		ToCurrency:   c.Query("toCurrency"),
		ActiveOnly:   c.Query("activeOnly") == "true",
	}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	if companyID := c.Query("companyId"); companyID != "" {
		if parsed, err := id.Parse(companyID); err == nil {
			filter.CompanyID = &parsed
		}
	}

	result, err := h.repo.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      dto.FromExchangeRates(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
