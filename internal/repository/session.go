package repository

import (
	"context"

	"donation/internal/domain"
)

// SessionRepository defines the persistence operations for checkout sessions.
// Implementations return copies; callers mutate and write back with Update.
type SessionRepository interface {
	// Create persists a new session. Returns ErrAlreadyExists if the order id is taken.
	Create(ctx context.Context, session *domain.CheckoutSession) error

	// GetByOrderID retrieves a session by order id.
	GetByOrderID(ctx context.Context, orderID string) (*domain.CheckoutSession, error)

	// Update replaces an existing session.
	Update(ctx context.Context, session *domain.CheckoutSession) error
}
