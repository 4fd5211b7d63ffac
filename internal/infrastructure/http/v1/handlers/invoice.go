package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"billfold/internal/core/id"
	"billfold/internal/domain"
	"billfold/internal/domain/invoice"
	"billfold/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler handles HTTP requests for invoices.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers invoice routes.
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/stats", h.Stats)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/send", h.Send)
	rg.POST("/:id/payments", h.RecordPayment)
	rg.POST("/:id/cancel", h.Cancel)
	rg.GET("/:id/history", h.History)
}

// Create handles POST /invoices.
func (h *InvoiceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv := req.ToEntity(companyID)
	if err := h.service.Create(ctx, inv); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromInvoice(inv))
}

// GetByID handles GET /invoices/:id.
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParseIDParam(c)
	if !ok {
		return
	}

	inv, err := h.service.GetByID(ctx, companyID, invID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// List handles GET /invoices - list with filtering.
func (h *InvoiceHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	filter := invoice.ListFilter{
		ListFilter: domain.DefaultListFilter(),
		CompanyID:  companyID,
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "-created_at")

	if status := c.Query("status"); status != "" {
		val := invoice.Status(status)
		filter.Status = &val
	}
	if paymentStatus := c.Query("paymentStatus"); paymentStatus != "" {
		val := invoice.PaymentStatus(paymentStatus)
		filter.PaymentStatus = &val
	}
	if customerID := c.Query("customerId"); customerID != "" {
		if parsed, err := id.Parse(customerID); err == nil {
			filter.CustomerID = &parsed
		}
	}
	if orderID := c.Query("orderId"); orderID != "" {
		if parsed, err := id.Parse(orderID); err == nil {
			filter.OrderID = &parsed
		}
	}
	if procurementID := c.Query("procurementId"); procurementID != "" {
		if parsed, err := id.Parse(procurementID); err == nil {
			filter.ProcurementID = &parsed
		}
	}
	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}
	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      dto.FromInvoices(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Update handles PUT /invoices/:id.
func (h *InvoiceHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParseIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.GetByID(ctx, companyID, invID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(inv)

	if err := h.service.Update(ctx, inv); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// Delete handles DELETE /invoices/:id. Drafts only.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, companyID, invID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Send handles POST /invoices/:id/send.
func (h *InvoiceHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParseIDParam(c)
	if !ok {
		return
	}

	inv, err := h.service.Send(ctx, companyID, invID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// RecordPayment handles POST /invoices/:id/payments.
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParseIDParam(c)
	if !ok {
		return
	}

	var req dto.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.RecordPayment(ctx, companyID, invID, req.Amount, req.PaymentRef)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// Cancel handles POST /invoices/:id/cancel.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParseIDParam(c)
	if !ok {
		return
	}

	var req dto.CancelInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.Cancel(ctx, companyID, invID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// History handles GET /invoices/:id/history.
func (h *InvoiceHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParseIDParam(c)
	if !ok {
		return
	}

	history, err := h.service.GetHistory(ctx, companyID, invID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": history, "count": len(history)})
}

// Stats handles GET /invoices/stats.
func (h *InvoiceHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(ctx, companyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, stats)
}
