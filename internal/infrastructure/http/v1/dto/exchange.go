package dto

import (
	"time"

	"billfold/internal/core/id"
	"billfold/internal/core/types"
	"billfold/internal/domain/exchange"
)

// CreateExchangeRateRequest represents a request to register a rate.
// CompanyID empty means the rate is global.
type CreateExchangeRateRequest struct {
	FromCurrency string      `json:"fromCurrency" binding:"required,len=3"`
	ToCurrency   string      `json:"toCurrency" binding:"required,len=3"`
	Rate         types.Money `json:"rate" binding:"required"`
	Date         *time.Time  `json:"date,omitempty"`
	CompanyID    *string     `json:"companyId,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateExchangeRateRequest) ToEntity() *exchange.ExchangeRate {
	date := time.Now().UTC()
	if r.Date != nil {
		date = *r.Date
	}
	rate := exchange.New(r.FromCurrency, r.ToCurrency, r.Rate, date)
	if r.CompanyID != nil {
		if parsed, err := id.Parse(*r.CompanyID); err == nil {
			rate.CompanyID = &parsed
		}
	}
	return rate
}

// ExchangeRateResponse represents a rate in API responses.
type ExchangeRateResponse struct {
	ID           string      `json:"id"`
	FromCurrency string      `json:"fromCurrency"`
	ToCurrency   string      `json:"toCurrency"`
	Rate         types.Money `json:"rate"`
	Date         time.Time   `json:"date"`
	CompanyID    *string     `json:"companyId,omitempty"`
	IsActive     bool        `json:"isActive"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// FromExchangeRate creates ExchangeRateResponse from the domain entity.
func FromExchangeRate(rate *exchange.ExchangeRate) ExchangeRateResponse {
	return ExchangeRateResponse{
		ID:           rate.ID.String(),
		FromCurrency: rate.FromCurrency,
		ToCurrency:   rate.ToCurrency,
		Rate:         rate.Rate,
		Date:         rate.Date,
		CompanyID:    idToString(rate.CompanyID),
		IsActive:     rate.IsActive,
		CreatedAt:    rate.CreatedAt,
	}
}

// FromExchangeRates converts a slice for list responses.
func FromExchangeRates(rates []*exchange.ExchangeRate) []ExchangeRateResponse {
	out := make([]ExchangeRateResponse, 0, len(rates))
	for _, rate := range rates {
		out = append(out, FromExchangeRate(rate))
	}
	return out
}
