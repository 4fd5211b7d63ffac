package company

import (
	"context"

	"billfold/internal/core/id"
	"billfold/internal/domain"
)

// Repository defines persistence operations for companies.
type Repository interface {
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, companyID id.ID) (*Company, error)
	Update(ctx context.Context, c *Company) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Company], error)
}
