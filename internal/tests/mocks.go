package tests

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"donation/internal/domain"
	"donation/internal/gateway"
	"donation/internal/repository"
	"donation/internal/service"
)

// ──────────────────────────────────────────────
// MOCK SESSION REPOSITORY
// ──────────────────────────────────────────────

// MockSessionRepository is a mock implementation of SessionRepository.
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CheckoutSession

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockSessionRepository creates a new mock session repository.
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		sessions: make(map[string]*domain.CheckoutSession),
	}
}

// AddSession adds a session to the mock repository.
func (m *MockSessionRepository) AddSession(session *domain.CheckoutSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.OrderID] = session.Clone()
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.CheckoutSession) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.OrderID]; ok {
		return repository.ErrAlreadyExists
	}
	m.sessions[session.OrderID] = session.Clone()
	return nil
}

func (m *MockSessionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.CheckoutSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return session.Clone(), nil
}

func (m *MockSessionRepository) Update(ctx context.Context, session *domain.CheckoutSession) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.OrderID]; !ok {
		return repository.ErrNotFound
	}
	m.sessions[session.OrderID] = session.Clone()
	return nil
}

// GetSession returns the stored session (for test assertions).
func (m *MockSessionRepository) GetSession(orderID string) *domain.CheckoutSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if session, ok := m.sessions[orderID]; ok {
		return session.Clone()
	}
	return nil
}

// CountSessions returns the number of sessions.
func (m *MockSessionRepository) CountSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ──────────────────────────────────────────────
// MOCK ORDER LOCKER
// ──────────────────────────────────────────────

// MockOrderLocker wraps a LocalLocker and records which orders are held.
type MockOrderLocker struct {
	inner *service.LocalLocker

	mu   sync.Mutex
	held map[string]bool

	// Counters
	LockCallCount   int32
	UnlockCallCount int32

	// Error injection
	LockError error
}

// NewMockOrderLocker creates a new mock order locker.
func NewMockOrderLocker() *MockOrderLocker {
	return &MockOrderLocker{
		inner: service.NewLocalLocker(),
		held:  make(map[string]bool),
	}
}

func (m *MockOrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	atomic.AddInt32(&m.LockCallCount, 1)
	if m.LockError != nil {
		return nil, m.LockError
	}

	unlock, err := m.inner.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.held[orderID] = true
	m.mu.Unlock()

	return func() {
		atomic.AddInt32(&m.UnlockCallCount, 1)
		m.mu.Lock()
		delete(m.held, orderID)
		m.mu.Unlock()
		unlock()
	}, nil
}

// IsLocked checks if an order is locked (for test assertions).
func (m *MockOrderLocker) IsLocked(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[orderID]
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a mock payment gateway. Replies are configured per call type.
type MockGateway struct {
	mu sync.Mutex

	// Control behavior
	Ticket       string
	TicketError  error
	Receipt      *gateway.PurchaseReceipt
	PurchaseErr  error
	FetchedBody  json.RawMessage
	FetchError   error
	Delay        time.Duration
	ObservedLock *MockOrderLocker

	// PurchaseEntered receives once Purchase is running; PurchaseHold keeps
	// it waiting until closed. Both are optional.
	PurchaseEntered chan struct{}
	PurchaseHold    chan struct{}

	// Counters
	TicketCallCount   int32
	PurchaseCallCount int32
	FetchCallCount    int32

	// CalledUnderLock counts gateway calls made while the order lock was held.
	CalledUnderLock int32
}

// NewMockGateway creates a new mock gateway that issues the given ticket.
func NewMockGateway(ticket string) *MockGateway {
	return &MockGateway{Ticket: ticket}
}

func (m *MockGateway) RequestTicket(ctx context.Context, req gateway.TicketRequest) (string, error) {
	atomic.AddInt32(&m.TicketCallCount, 1)
	m.observe(ctx, req.OrderID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TicketError != nil {
		return "", m.TicketError
	}
	return m.Ticket, nil
}

func (m *MockGateway) Purchase(ctx context.Context, req gateway.PurchaseRequest) (*gateway.PurchaseReceipt, error) {
	atomic.AddInt32(&m.PurchaseCallCount, 1)
	m.observe(ctx, req.OrderID)
	if m.PurchaseEntered != nil {
		m.PurchaseEntered <- struct{}{}
	}
	if m.PurchaseHold != nil {
		select {
		case <-m.PurchaseHold:
		case <-ctx.Done():
			return nil, &gateway.UnreachableError{Op: "res_purchase_cc", Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PurchaseErr != nil {
		return nil, m.PurchaseErr
	}
	if m.Receipt != nil {
		receipt := *m.Receipt
		return &receipt, nil
	}
	return ApprovedPurchaseReceipt(req.OrderID, req.Amount), nil
}

func (m *MockGateway) FetchReceipt(ctx context.Context, ticket string) (json.RawMessage, error) {
	atomic.AddInt32(&m.FetchCallCount, 1)
	m.observe(ctx, "")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	return m.FetchedBody, nil
}

// SetTicketFailure configures RequestTicket to fail.
func (m *MockGateway) SetTicketFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TicketError = err
}

func (m *MockGateway) observe(ctx context.Context, orderID string) {
	if m.ObservedLock != nil && orderID != "" && m.ObservedLock.IsLocked(orderID) {
		atomic.AddInt32(&m.CalledUnderLock, 1)
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
		}
	}
}

// ApprovedPurchaseReceipt builds an approving purchase receipt for amount.
func ApprovedPurchaseReceipt(orderID string, amount decimal.Decimal) *gateway.PurchaseReceipt {
	return &gateway.PurchaseReceipt{
		ReceiptID:    orderID,
		ReferenceNum: "660123450010690030",
		ResponseCode: "027",
		AuthCode:     "123456",
		TransTime:    "12:00:00",
		TransDate:    "2026-10-16",
		TransAmount:  amount.StringFixed(2),
		TransID:      "24-0_14",
		CardType:     "V",
		Complete:     "true",
		Message:      "APPROVED           *                    =",
	}
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
