package procurement

import (
	"context"
	"fmt"

	"billfold/internal/core/id"
	"billfold/internal/core/tx"
	"billfold/pkg/logger"
)

// Reconciler propagates invoice payment facts onto linked procurement
// records. Callers treat it as a best-effort side channel: returned
// errors are logged, never propagated to the invoice mutation.
type Reconciler struct {
	repo      Repository
	txManager tx.Manager
}

// NewReconciler creates a reconciler.
func NewReconciler(repo Repository, txManager tx.Manager) *Reconciler {
	return &Reconciler{repo: repo, txManager: txManager}
}

// Reconcile upserts the invoice summary onto the procurement and
// recomputes its aggregate payment status.
func (r *Reconciler) Reconcile(ctx context.Context, procurementID id.ID, ref InvoiceRef) error {
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		proc, err := r.repo.GetByID(ctx, procurementID)
		if err != nil {
			return fmt.Errorf("load procurement: %w", err)
		}

		proc.Apply(ref)
		proc.Touch()

		if err := r.repo.Update(ctx, proc); err != nil {
			return fmt.Errorf("update procurement: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "procurement reconciled",
		"procurement_id", procurementID,
		"invoice_id", ref.InvoiceID,
		"amount", ref.Amount)
	return nil
}
