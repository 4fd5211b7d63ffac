package procurement

import (
	"context"

	"billfold/internal/core/id"
)

// Repository defines persistence operations for procurement records.
type Repository interface {
	GetByID(ctx context.Context, procurementID id.ID) (*Procurement, error)
	Update(ctx context.Context, p *Procurement) error
}
