package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"donation/internal/domain"
	"donation/internal/repository"
)

const sessionKeyPrefix = "checkout:session:"

// SessionStore keeps checkout sessions in Redis as JSON documents with a TTL,
// so any instance can reconcile a callback by order id.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// cachedDonor is the stored form of domain.Donor.
type cachedDonor struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// cachedSettlement is the stored form of domain.Settlement.
type cachedSettlement struct {
	Approved        bool            `json:"approved"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	ApprovalCode    string          `json:"approval_code,omitempty"`
	ResponseCode    string          `json:"response_code,omitempty"`
	CardType        string          `json:"card_type,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionTime string          `json:"transaction_time,omitempty"`
	Message         string          `json:"message,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
}

// cachedSession is the stored form of domain.CheckoutSession.
type cachedSession struct {
	OrderID       string            `json:"order_id"`
	CustomerID    string            `json:"customer_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Donor         *cachedDonor      `json:"donor,omitempty"`
	Flow          string            `json:"flow"`
	Ticket        string            `json:"ticket,omitempty"`
	DataKey       string            `json:"data_key,omitempty"`
	TokenConsumed bool              `json:"token_consumed"`
	State         string            `json:"state"`
	Result        *cachedSettlement `json:"result,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Create stores a new session; fails with repository.ErrAlreadyExists if the order id is taken.
func (s *SessionStore) Create(ctx context.Context, session *domain.CheckoutSession) error {
	data, err := json.Marshal(toCached(session))
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, sessionKeyPrefix+session.OrderID, data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrAlreadyExists
	}
	return nil
}

// GetByOrderID retrieves a session from Redis.
func (s *SessionStore) GetByOrderID(ctx context.Context, orderID string) (*domain.CheckoutSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+orderID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return fromCached(&cached), nil
}

// Update overwrites an existing session, keeping its original TTL.
func (s *SessionStore) Update(ctx context.Context, session *domain.CheckoutSession) error {
	data, err := json.Marshal(toCached(session))
	if err != nil {
		return err
	}

	err = s.client.SetArgs(ctx, sessionKeyPrefix+session.OrderID, data, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return repository.ErrNotFound
	}
	return err
}

func toCached(s *domain.CheckoutSession) *cachedSession {
	c := &cachedSession{
		OrderID:       s.OrderID,
		CustomerID:    s.CustomerID,
		Amount:        s.Amount,
		Flow:          string(s.Flow),
		Ticket:        s.Ticket,
		DataKey:       s.DataKey,
		TokenConsumed: s.TokenConsumed,
		State:         string(s.State),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if d := s.Donor; d != nil {
		c.Donor = &cachedDonor{
			FirstName:  d.FirstName,
			LastName:   d.LastName,
			Email:      d.Email,
			Phone:      d.Phone,
			Address:    d.Address,
			City:       d.City,
			Province:   d.Province,
			Country:    d.Country,
			PostalCode: d.PostalCode,
		}
	}
	if r := s.Result; r != nil {
		c.Result = &cachedSettlement{
			Approved:        r.Approved,
			TransactionID:   r.TransactionID,
			ReferenceNumber: r.ReferenceNumber,
			ApprovalCode:    r.ApprovalCode,
			ResponseCode:    r.ResponseCode,
			CardType:        r.CardType,
			Amount:          r.Amount,
			TransactionTime: r.TransactionTime,
			Message:         r.Message,
			FailureReason:   string(r.FailureReason),
		}
	}
	return c
}

func fromCached(c *cachedSession) *domain.CheckoutSession {
	s := &domain.CheckoutSession{
		OrderID:       c.OrderID,
		CustomerID:    c.CustomerID,
		Amount:        c.Amount,
		Flow:          domain.CheckoutFlow(c.Flow),
		Ticket:        c.Ticket,
		DataKey:       c.DataKey,
		TokenConsumed: c.TokenConsumed,
		State:         domain.SessionState(c.State),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if d := c.Donor; d != nil {
		s.Donor = &domain.Donor{
			FirstName:  d.FirstName,
			LastName:   d.LastName,
			Email:      d.Email,
			Phone:      d.Phone,
			Address:    d.Address,
			City:       d.City,
			Province:   d.Province,
			Country:    d.Country,
			PostalCode: d.PostalCode,
		}
	}
	if r := c.Result; r != nil {
		s.Result = &domain.Settlement{
			Approved:        r.Approved,
			TransactionID:   r.TransactionID,
			ReferenceNumber: r.ReferenceNumber,
			ApprovalCode:    r.ApprovalCode,
			ResponseCode:    r.ResponseCode,
			CardType:        r.CardType,
			Amount:          r.Amount,
			TransactionTime: r.TransactionTime,
			Message:         r.Message,
			FailureReason:   domain.FailureReason(r.FailureReason),
		}
	}
	return s
}
