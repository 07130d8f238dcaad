package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"donation/internal/domain"
	"donation/internal/repository"
)

func TestSessionRepository_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	session := &domain.CheckoutSession{
		OrderID: "DON-1",
		Amount:  decimal.RequireFromString("5.00"),
		State:   domain.SessionStateInit,
	}
	require.NoError(t, repo.Create(ctx, session))
	require.ErrorIs(t, repo.Create(ctx, session), repository.ErrAlreadyExists)

	got, err := repo.GetByOrderID(ctx, "DON-1")
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateInit, got.State)

	// Mutating a returned copy does not touch the store.
	got.State = domain.SessionStateTicketIssued
	again, err := repo.GetByOrderID(ctx, "DON-1")
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateInit, again.State)

	require.NoError(t, repo.Update(ctx, got))
	again, err = repo.GetByOrderID(ctx, "DON-1")
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateTicketIssued, again.State)
	require.Equal(t, 1, repo.Len())
}

func TestSessionRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	_, err := repo.GetByOrderID(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.Update(ctx, &domain.CheckoutSession{OrderID: "missing"})
	require.ErrorIs(t, err, repository.ErrNotFound)
}
