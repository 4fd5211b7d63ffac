package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billfold/internal/core/apperror"
	"billfold/internal/core/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusDraft, StatusPaid, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusOverdue, false},
		{StatusSent, StatusPaid, true},
		{StatusSent, StatusOverdue, true},
		{StatusSent, StatusCancelled, true},
		{StatusSent, StatusDraft, false},
		{StatusOverdue, StatusPaid, true},
		{StatusOverdue, StatusCancelled, false},
		{StatusPaid, StatusSent, false},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusDraft, false},
		{StatusCancelled, StatusPaid, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestSend(t *testing.T) {
	inv := New(testCompanyID())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, inv.Send(now))

	assert.Equal(t, StatusSent, inv.Status)
	require.NotNil(t, inv.SentDate)
	assert.Equal(t, now, *inv.SentDate)
}

func TestSend_AlreadySent(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))

	err := inv.Send(time.Now())
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIllegalTransition, appErr.Code)
	assert.Equal(t, "Cannot transition invoice from sent to sent", appErr.Message)
}

func TestCancel_FromSent(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))

	require.NoError(t, inv.Cancel())
	assert.Equal(t, StatusCancelled, inv.Status)
}

func TestCancel_FromPaid(t *testing.T) {
	inv := New(testCompanyID())
	inv.Status = StatusPaid

	err := inv.Cancel()
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeIllegalTransition, appErr.Code)
}

func TestMarkOverdue(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))

	require.NoError(t, inv.MarkOverdue())
	assert.Equal(t, StatusOverdue, inv.Status)
}

func TestMarkOverdue_FullyPaidRefused(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))
	inv.TotalAmount = types.MustMoney("100")
	inv.PaidAmount = types.MustMoney("100")

	err := inv.MarkOverdue()
	require.Error(t, err)
	assert.Equal(t, StatusSent, inv.Status)
}

func TestApplyPayment_Partial(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))
	inv.TotalAmount = types.MustMoney("1000")

	require.NoError(t, inv.ApplyPayment(types.MustMoney("999"), time.Now()))

	assert.Equal(t, StatusSent, inv.Status)
	assert.Equal(t, PaymentPartiallyPaid, inv.PaymentStatus)
	assert.Nil(t, inv.PaymentDate)
}

func TestApplyPayment_CrossesThreshold(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))
	inv.TotalAmount = types.MustMoney("1000")

	require.NoError(t, inv.ApplyPayment(types.MustMoney("999"), time.Now()))
	require.NoError(t, inv.ApplyPayment(types.MustMoney("1"), time.Now()))

	assert.Equal(t, StatusPaid, inv.Status)
	assert.Equal(t, PaymentPaid, inv.PaymentStatus)
	assert.NotNil(t, inv.PaymentDate)
	assert.True(t, types.MustMoney("1000").Equal(inv.PaidAmount))
}

func TestApplyPayment_OverpaymentNotClamped(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))
	inv.TotalAmount = types.MustMoney("1000")

	require.NoError(t, inv.ApplyPayment(types.MustMoney("1500"), time.Now()))

	assert.Equal(t, StatusPaid, inv.Status)
	assert.True(t, types.MustMoney("1500").Equal(inv.PaidAmount))
}

func TestApplyPayment_FromOverdue(t *testing.T) {
	inv := New(testCompanyID())
	require.NoError(t, inv.Send(time.Now()))
	require.NoError(t, inv.MarkOverdue())
	inv.TotalAmount = types.MustMoney("100")

	require.NoError(t, inv.ApplyPayment(types.MustMoney("100"), time.Now()))
	assert.Equal(t, StatusPaid, inv.Status)
}

func TestApplyPayment_TerminalStatesRejected(t *testing.T) {
	for _, status := range []Status{StatusPaid, StatusCancelled} {
		inv := New(testCompanyID())
		inv.Status = status
		inv.TotalAmount = types.MustMoney("100")

		err := inv.ApplyPayment(types.MustMoney("10"), time.Now())
		require.Error(t, err, "status %s", status)
		assert.True(t, inv.PaidAmount.IsZero())
	}
}

func TestApplyPayment_NonPositiveAmount(t *testing.T) {
	inv := New(testCompanyID())

	err := inv.ApplyPayment(types.Zero(), time.Now())
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	err = inv.ApplyPayment(types.MustMoney("-5"), time.Now())
	require.Error(t, err)
}

func TestReminderBookkeeping(t *testing.T) {
	inv := New(testCompanyID())
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, inv.ReminderDue(now, 72*time.Hour))

	inv.RecordReminder(now)
	assert.Equal(t, 1, inv.RemindersSent)
	require.NotNil(t, inv.LastReminderDate)

	assert.False(t, inv.ReminderDue(now.Add(71*time.Hour), 72*time.Hour))
	assert.True(t, inv.ReminderDue(now.Add(72*time.Hour), 72*time.Hour))
}

func TestRecordReminder_AllowedOnTerminal(t *testing.T) {
	inv := New(testCompanyID())
	inv.Status = StatusCancelled

	inv.RecordReminder(time.Now())
	assert.Equal(t, 1, inv.RemindersSent)
}
