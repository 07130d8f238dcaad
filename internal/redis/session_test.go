package redis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"donation/internal/domain"
)

func TestCachedSession_RoundTripsAllFields(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	session := &domain.CheckoutSession{
		OrderID:       "DON-1",
		CustomerID:    "CUST-1",
		Amount:        decimal.RequireFromString("5.00"),
		Donor:         &domain.Donor{FirstName: "Test", Email: "test@example.com", PostalCode: "M1M1M1"},
		Flow:          domain.FlowHostedCheckout,
		Ticket:        "abc123",
		TokenConsumed: true,
		State:         domain.SessionStateCompleted,
		Result: &domain.Settlement{
			Approved:      true,
			TransactionID: "txn-1",
			ApprovalCode:  "123456",
			ResponseCode:  "027",
			Amount:        decimal.RequireFromString("5.00"),
		},
		CreatedAt: now,
		UpdatedAt: now.Add(time.Minute),
	}

	got := fromCached(toCached(session))

	require.True(t, session.Amount.Equal(got.Amount))
	require.True(t, session.Result.Amount.Equal(got.Result.Amount))
	got.Amount = session.Amount
	got.Result.Amount = session.Result.Amount
	require.Equal(t, session, got)
}

func TestOrderLockKey(t *testing.T) {
	require.Equal(t, "lock:order:DON-1", orderLockKey("DON-1"))
}
