package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState represents the lifecycle state of a checkout session.
type SessionState string

const (
	SessionStateInit             SessionState = "INIT"
	SessionStateTicketIssued     SessionState = "TICKET_ISSUED"
	SessionStatePaymentSubmitted SessionState = "PAYMENT_SUBMITTED"
	SessionStateCompleted        SessionState = "COMPLETED"
	SessionStateFailed           SessionState = "FAILED"
	SessionStateCancelled        SessionState = "CANCELLED"
)

var sessionTransitions = map[SessionState][]SessionState{
	SessionStateInit:             {SessionStateTicketIssued},
	SessionStateTicketIssued:     {SessionStatePaymentSubmitted, SessionStateCancelled},
	SessionStatePaymentSubmitted: {SessionStateCompleted, SessionStateFailed, SessionStateCancelled},
}

// CanTransitionTo reports whether next is a valid edge from s.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateCompleted || s == SessionStateFailed || s == SessionStateCancelled
}

func (s SessionState) String() string {
	return string(s)
}

// CheckoutFlow identifies which gateway integration a session uses.
type CheckoutFlow string

const (
	FlowHostedCheckout CheckoutFlow = "hosted_checkout"
	FlowTokenization   CheckoutFlow = "tokenization"
)

// Donor holds optional contact and billing details passed through to the gateway.
type Donor struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    string
	City       string
	Province   string
	Country    string
	PostalCode string
}

// FailureReason classifies why a session ended in FAILED.
type FailureReason string

const (
	FailureDeclined       FailureReason = "DECLINED"
	FailureAmountMismatch FailureReason = "AMOUNT_MISMATCH"
	FailureMalformed      FailureReason = "MALFORMED_RESPONSE"
	FailureUnreachable    FailureReason = "GATEWAY_UNREACHABLE"
)

// Settlement is the gateway's final decision for a submitted payment.
type Settlement struct {
	Approved        bool
	TransactionID   string
	ReferenceNumber string
	ApprovalCode    string
	ResponseCode    string
	CardType        string
	Amount          decimal.Decimal
	TransactionTime string
	Message         string
	FailureReason   FailureReason
}

// CheckoutSession tracks one donation attempt from ticket request to settlement.
type CheckoutSession struct {
	OrderID       string
	CustomerID    string
	Amount        decimal.Decimal
	Donor         *Donor
	Flow          CheckoutFlow
	Ticket        string // hosted checkout flow only
	DataKey       string // tokenization flow only
	TokenConsumed bool
	State         SessionState
	Result        *Settlement
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Token returns the gateway token bound to the session for its flow.
func (s *CheckoutSession) Token() string {
	if s.Flow == FlowTokenization {
		return s.DataKey
	}
	return s.Ticket
}

// Clone returns a deep copy safe to hand out of a store.
func (s *CheckoutSession) Clone() *CheckoutSession {
	c := *s
	if s.Donor != nil {
		d := *s.Donor
		c.Donor = &d
	}
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}
