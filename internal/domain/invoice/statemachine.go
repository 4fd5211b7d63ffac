package invoice

import (
	"time"

	"billfold/internal/core/apperror"
	"billfold/internal/core/types"
)

// transitions is the closed set of legal status moves. Paid and
// Cancelled are terminal. Overdue invoices still accept payment.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusSent, StatusPaid, StatusCancelled},
	StatusSent:    {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid},
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition moves the invoice to a new status or returns
// IllegalTransitionError, leaving the document untouched.
func (inv *Invoice) transition(to Status) error {
	if !CanTransition(inv.Status, to) {
		return apperror.NewIllegalTransition(string(inv.Status), string(to))
	}
	inv.Status = to
	return nil
}

// Send moves a Draft to Sent and stamps the sent date.
func (inv *Invoice) Send(now time.Time) error {
	if err := inv.transition(StatusSent); err != nil {
		return err
	}
	now = now.UTC()
	inv.SentDate = &now
	return nil
}

// Cancel terminally overrides the lifecycle. No further mutation is
// permitted afterwards.
func (inv *Invoice) Cancel() error {
	return inv.transition(StatusCancelled)
}

// MarkOverdue transitions Sent -> Overdue. Driven by the scheduler
// sweep, never by a direct user call.
func (inv *Invoice) MarkOverdue() error {
	if inv.IsFullyPaid() {
		return apperror.NewIllegalTransition(string(inv.Status), string(StatusOverdue))
	}
	return inv.transition(StatusOverdue)
}

// ApplyPayment accumulates a payment and derives payment status.
// Crossing the full-payment threshold forces status=Paid and stamps
// the payment date. Over-payment is accepted without clamping.
func (inv *Invoice) ApplyPayment(amount types.Money, now time.Time) error {
	if !amount.IsPositive() {
		return apperror.NewValidation("payment amount must be positive").
			WithDetail("field", "amount")
	}

	switch inv.Status {
	case StatusPaid, StatusCancelled:
		return apperror.NewIllegalTransition(string(inv.Status), string(StatusPaid))
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)

	if inv.IsFullyPaid() {
		if err := inv.transition(StatusPaid); err != nil {
			return err
		}
		inv.PaymentStatus = PaymentPaid
		now = now.UTC()
		inv.PaymentDate = &now
		return nil
	}

	inv.PaymentStatus = PaymentPartiallyPaid
	return nil
}

// RecordReminder bumps reminder bookkeeping. Allowed in any status:
// these fields are exempt from terminal-state immutability.
func (inv *Invoice) RecordReminder(now time.Time) {
	now = now.UTC()
	inv.RemindersSent++
	inv.LastReminderDate = &now
}

// ReminderDue reports whether the cooldown window since the last
// reminder has elapsed at asOf.
func (inv *Invoice) ReminderDue(asOf time.Time, cooldown time.Duration) bool {
	if inv.LastReminderDate == nil {
		return true
	}
	return asOf.Sub(*inv.LastReminderDate) >= cooldown
}
