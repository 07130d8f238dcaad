package memory

import (
	"context"
	"sync"

	"donation/internal/domain"
	"donation/internal/repository"
)

// SessionRepository keeps checkout sessions in process memory.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CheckoutSession
}

// NewSessionRepository creates an empty in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*domain.CheckoutSession)}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.OrderID]; ok {
		return repository.ErrAlreadyExists
	}
	r.sessions[session.OrderID] = session.Clone()
	return nil
}

// GetByOrderID retrieves a session by order id.
func (r *SessionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.CheckoutSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return session.Clone(), nil
}

// Update replaces an existing session.
func (r *SessionRepository) Update(ctx context.Context, session *domain.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.OrderID]; !ok {
		return repository.ErrNotFound
	}
	r.sessions[session.OrderID] = session.Clone()
	return nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
