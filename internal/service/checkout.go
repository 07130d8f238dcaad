package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donation/internal/domain"
	"donation/internal/gateway"
	"donation/internal/repository"
)

const maxOrderIDLength = 50

// Gateway is the subset of the payment gateway client used by the checkout flows.
type Gateway interface {
	RequestTicket(ctx context.Context, req gateway.TicketRequest) (string, error)
	Purchase(ctx context.Context, req gateway.PurchaseRequest) (*gateway.PurchaseReceipt, error)
	FetchReceipt(ctx context.Context, ticket string) (json.RawMessage, error)
}

// Ensure the real client satisfies Gateway.
var _ Gateway = (*gateway.Client)(nil)

// CheckoutService drives checkout sessions through ticket issuance, submission and settlement.
type CheckoutService struct {
	sessions   repository.SessionRepository
	gateway    Gateway
	locker     OrderLocker
	validator  *AmountValidator
	reconciler *Reconciler
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	sessions repository.SessionRepository,
	gw Gateway,
	locker OrderLocker,
	validator *AmountValidator,
	reconciler *Reconciler,
) *CheckoutService {
	return &CheckoutService{
		sessions:   sessions,
		gateway:    gw,
		locker:     locker,
		validator:  validator,
		reconciler: reconciler,
	}
}

// StartCheckoutRequest contains the parameters for starting a hosted checkout.
type StartCheckoutRequest struct {
	Amount  string
	OrderID string        // Optional: generated when empty
	Donor   *domain.Donor // Optional
}

// StartCheckout validates the amount, records a session and obtains a checkout ticket.
// A failed ticket request leaves the session in INIT so the same order id can retry.
func (s *CheckoutService) StartCheckout(ctx context.Context, req StartCheckoutRequest) (*domain.CheckoutSession, error) {
	amount, err := s.validator.Validate(req.Amount)
	if err != nil {
		return nil, err
	}

	orderID, err := resolveOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}

	session, err := s.createOrResume(ctx, &domain.CheckoutSession{
		OrderID:    orderID,
		CustomerID: "CUST-" + uuid.New().String(),
		Amount:     amount,
		Donor:      req.Donor,
		Flow:       domain.FlowHostedCheckout,
		State:      domain.SessionStateInit,
	})
	if err != nil {
		return nil, err
	}

	// The gateway round trip happens outside the order lock.
	ticket, err := s.gateway.RequestTicket(ctx, gateway.TicketRequest{
		OrderID:    session.OrderID,
		CustomerID: session.CustomerID,
		Amount:     session.Amount,
		Donor:      session.Donor,
	})
	if err != nil {
		log.Printf("layer=service component=checkout op=start order_id=%s ticket_request_failed err=%v", orderID, err)
		return nil, err
	}

	unlock, err := lockOrder(ctx, s.locker, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := loadSession(ctx, s.sessions, orderID)
	if err != nil {
		return nil, err
	}

	if err := transition(current, domain.SessionStateTicketIssued, time.Now()); err != nil {
		return nil, err
	}
	current.Ticket = ticket

	if err := s.sessions.Update(ctx, current); err != nil {
		return nil, err
	}

	log.Printf("layer=service component=checkout op=start order_id=%s amount=%s state=%s",
		orderID, current.Amount.StringFixed(2), current.State)
	return current, nil
}

// MarkSubmitted records that the donor submitted payment in the hosted widget.
func (s *CheckoutService) MarkSubmitted(ctx context.Context, orderID, ticket string) (*domain.CheckoutSession, error) {
	return s.update(ctx, "submitted", orderID, ticket, func(session *domain.CheckoutSession) error {
		if session.Flow != domain.FlowHostedCheckout {
			return ErrFlowMismatch
		}
		if err := transition(session, domain.SessionStatePaymentSubmitted, time.Now()); err != nil {
			return err
		}
		session.TokenConsumed = true
		return nil
	})
}

// Cancel records that the donor abandoned the hosted widget.
func (s *CheckoutService) Cancel(ctx context.Context, orderID, ticket string) (*domain.CheckoutSession, error) {
	return s.update(ctx, "cancel", orderID, ticket, func(session *domain.CheckoutSession) error {
		if session.Flow != domain.FlowHostedCheckout {
			return ErrFlowMismatch
		}
		return transition(session, domain.SessionStateCancelled, time.Now())
	})
}

// CompletePurchaseRequest contains the parameters for a tokenization flow purchase.
type CompletePurchaseRequest struct {
	OrderID string // Optional: generated when empty
	Amount  string
	DataKey string
}

// CompletePurchase charges a tokenized card and settles the session.
// The data key is consumed before the gateway is called, so a lost reply
// leaves the session FAILED rather than open to a second charge.
func (s *CheckoutService) CompletePurchase(ctx context.Context, req CompletePurchaseRequest) (*domain.CheckoutSession, error) {
	amount, err := s.validator.Validate(req.Amount)
	if err != nil {
		return nil, err
	}

	dataKey := strings.TrimSpace(req.DataKey)
	if dataKey == "" {
		return nil, ErrMissingToken
	}

	orderID, err := resolveOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}

	session, err := s.createOrResume(ctx, &domain.CheckoutSession{
		OrderID:    orderID,
		CustomerID: "CUST-" + uuid.New().String(),
		Amount:     amount,
		Flow:       domain.FlowTokenization,
		State:      domain.SessionStateInit,
	})
	if err != nil {
		return nil, err
	}

	if err := s.consumeDataKey(ctx, orderID, dataKey); err != nil {
		return nil, err
	}

	receipt, gwErr := s.gateway.Purchase(ctx, gateway.PurchaseRequest{
		OrderID:    session.OrderID,
		CustomerID: session.CustomerID,
		DataKey:    dataKey,
		Amount:     session.Amount,
	})
	if gwErr != nil {
		log.Printf("layer=service component=checkout op=complete order_id=%s purchase_failed err=%v", orderID, gwErr)
		reason := domain.FailureUnreachable
		if errors.Is(gwErr, gateway.ErrMalformedResponse) {
			reason = domain.FailureMalformed
		}
		if _, err := s.reconciler.fail(ctx, orderID, dataKey, reason); err != nil {
			log.Printf("layer=service component=checkout op=complete order_id=%s settle_failed err=%v", orderID, err)
		}
		return nil, gwErr
	}

	return s.reconciler.settlePurchase(ctx, orderID, dataKey, receipt)
}

// GetSession retrieves a checkout session by order id.
func (s *CheckoutService) GetSession(ctx context.Context, orderID string) (*domain.CheckoutSession, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return loadSession(ctx, s.sessions, orderID)
}

func (s *CheckoutService) consumeDataKey(ctx context.Context, orderID, dataKey string) error {
	unlock, err := lockOrder(ctx, s.locker, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	session, err := loadSession(ctx, s.sessions, orderID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := transition(session, domain.SessionStateTicketIssued, now); err != nil {
		return err
	}
	session.DataKey = dataKey

	if err := transition(session, domain.SessionStatePaymentSubmitted, now); err != nil {
		return err
	}
	session.TokenConsumed = true

	return s.sessions.Update(ctx, session)
}

// createOrResume stores a new session in INIT. A caller-supplied order id that
// already exists is only reused while it is still INIT in the same flow for the same amount.
func (s *CheckoutService) createOrResume(ctx context.Context, session *domain.CheckoutSession) (*domain.CheckoutSession, error) {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	err := s.sessions.Create(ctx, session)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, repository.ErrAlreadyExists) {
		return nil, err
	}

	existing, err := loadSession(ctx, s.sessions, session.OrderID)
	if err != nil {
		return nil, err
	}

	switch {
	case existing.Flow != session.Flow:
		if session.Flow == domain.FlowTokenization {
			return nil, fmt.Errorf("%w: order %s uses %s", ErrFlowMismatch, existing.OrderID, existing.Flow)
		}
		return nil, fmt.Errorf("%w: %s", ErrOrderExists, existing.OrderID)
	case existing.State != domain.SessionStateInit:
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderExists, existing.OrderID, existing.State)
	case !existing.Amount.Equal(session.Amount):
		if session.Flow == domain.FlowTokenization {
			return nil, fmt.Errorf("%w: order %s is for %s", ErrAmountMismatch, existing.OrderID, existing.Amount.StringFixed(2))
		}
		return nil, fmt.Errorf("%w: %s", ErrOrderExists, existing.OrderID)
	}

	log.Printf("layer=service component=checkout order_id=%s resuming session in INIT", existing.OrderID)
	return existing, nil
}

// update runs mutate against the locked session after checking its token.
func (s *CheckoutService) update(
	ctx context.Context,
	op, orderID, token string,
	mutate func(*domain.CheckoutSession) error,
) (*domain.CheckoutSession, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	unlock, err := lockOrder(ctx, s.locker, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := loadSession(ctx, s.sessions, orderID)
	if err != nil {
		return nil, err
	}

	if session.Token() != token {
		log.Printf("layer=service component=checkout op=%s order_id=%s token mismatch", op, orderID)
		return nil, ErrTokenMismatch
	}

	if err := mutate(session); err != nil {
		return nil, err
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	log.Printf("layer=service component=checkout op=%s order_id=%s state=%s", op, orderID, session.State)
	return session, nil
}

func resolveOrderID(orderID string) (string, error) {
	if orderID == "" {
		return "DON-" + uuid.New().String(), nil
	}
	if len(orderID) > maxOrderIDLength || strings.ContainsAny(orderID, " \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderID, orderID)
	}
	return orderID, nil
}

func lockOrder(ctx context.Context, locker OrderLocker, orderID string) (func(), error) {
	unlock, err := locker.Lock(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSessionBusy, orderID, err)
	}
	return unlock, nil
}

func loadSession(ctx context.Context, sessions repository.SessionRepository, orderID string) (*domain.CheckoutSession, error) {
	session, err := sessions.GetByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	return session, err
}

// transition moves the session along a valid edge or leaves it untouched.
func transition(session *domain.CheckoutSession, next domain.SessionState, now time.Time) error {
	if !session.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.State, next)
	}
	session.State = next
	session.UpdatedAt = now
	return nil
}

// amountsMatch compares a gateway-reported amount against the session amount.
func amountsMatch(session *domain.CheckoutSession, reported string) (decimal.Decimal, bool) {
	charged, err := decimal.NewFromString(strings.TrimSpace(reported))
	if err != nil {
		return decimal.Zero, false
	}
	return charged, charged.Equal(session.Amount)
}
