package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"donation/internal/domain"
	"donation/internal/gateway"
	"donation/internal/repository"
)

// approvedResponseCodeLimit is the exclusive upper bound of approving ISO response codes.
const approvedResponseCodeLimit = 50

// Reconciler settles submitted sessions from gateway receipts.
type Reconciler struct {
	sessions       repository.SessionRepository
	gateway        Gateway
	locker         OrderLocker
	verifyReceipts bool
}

// NewReconciler creates a new Reconciler. When verifyReceipts is set, hosted
// checkout receipts are fetched from the gateway instead of trusting the caller's payload.
func NewReconciler(sessions repository.SessionRepository, gw Gateway, locker OrderLocker, verifyReceipts bool) *Reconciler {
	return &Reconciler{
		sessions:       sessions,
		gateway:        gw,
		locker:         locker,
		verifyReceipts: verifyReceipts,
	}
}

// ReconcileRequest contains a receipt relayed from the checkout widget.
type ReconcileRequest struct {
	OrderID string
	Token   string
	Payload json.RawMessage
}

// checkoutReceipt is the hosted checkout receipt document.
type checkoutReceipt struct {
	Success gateway.Flag `json:"success"`
	Ticket  string       `json:"ticket"`
	Request struct {
		OrderNo string `json:"order_no"`
		CCTotal string `json:"cc_total"`
	} `json:"request"`
	Receipt *struct {
		Result string `json:"result"`
		CC     struct {
			OrderNo             string `json:"order_no"`
			TransactionNo       string `json:"transaction_no"`
			ReferenceNo         string `json:"reference_no"`
			ApprovalCode        string `json:"approval_code"`
			ResponseCode        string `json:"response_code"`
			CardType            string `json:"card_type"`
			Amount              string `json:"amount"`
			TransactionDateTime string `json:"transaction_date_time"`
			Message             string `json:"message"`
		} `json:"cc"`
	} `json:"receipt"`
}

// settleFunc derives the settlement for a locked session. A nil settlement
// aborts without writing; otherwise the returned error accompanies the saved outcome.
type settleFunc func(session *domain.CheckoutSession) (*domain.Settlement, error)

// Reconcile settles a hosted checkout session from a widget receipt. Success
// is returned only when the gateway explicitly approved the charge for the
// session amount. Tokenization sessions are settled only by their own
// purchase reply and are rejected here.
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest) (*domain.CheckoutSession, error) {
	if req.OrderID == "" {
		return nil, ErrInvalidOrderID
	}
	if req.Token == "" {
		return nil, ErrMissingToken
	}

	payload := req.Payload
	var lookupErr error
	if r.verifyReceipts {
		fetched, err := r.fetchReceipt(ctx, req.OrderID, req.Token)
		switch {
		case errors.Is(err, gateway.ErrMalformedResponse):
			lookupErr = err
		case err != nil:
			return nil, err
		default:
			payload = fetched
		}
	}

	return r.apply(ctx, "reconcile", req.OrderID, req.Token, func(session *domain.CheckoutSession) (*domain.Settlement, error) {
		if session.Flow != domain.FlowHostedCheckout {
			return nil, ErrFlowMismatch
		}
		if lookupErr != nil {
			return malformedOutcome(session, lookupErr)
		}
		if len(bytes.TrimSpace(payload)) == 0 {
			return malformedOutcome(session, fmt.Errorf("%w: empty payload", ErrMalformedPayload))
		}

		var receipt checkoutReceipt
		if err := json.Unmarshal(payload, &receipt); err != nil {
			return malformedOutcome(session, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
		}
		return classifyCheckoutReceipt(session, &receipt)
	})
}

// malformedOutcome fails a submitted session on an unreadable receipt. A
// session that only has a ticket is left as it is.
func malformedOutcome(session *domain.CheckoutSession, err error) (*domain.Settlement, error) {
	if session.State != domain.SessionStatePaymentSubmitted {
		return nil, err
	}
	return &domain.Settlement{FailureReason: domain.FailureMalformed}, err
}

// fetchReceipt reads the authoritative receipt for a hosted checkout ticket.
// The gateway is called before the order lock is taken.
func (r *Reconciler) fetchReceipt(ctx context.Context, orderID, token string) (json.RawMessage, error) {
	session, err := loadSession(ctx, r.sessions, orderID)
	if err != nil {
		return nil, err
	}
	if session.Token() != token {
		return nil, ErrTokenMismatch
	}
	if session.Flow != domain.FlowHostedCheckout {
		return nil, ErrFlowMismatch
	}

	receipt, err := r.gateway.FetchReceipt(ctx, token)
	if err != nil {
		log.Printf("layer=service component=reconciler order_id=%s receipt_lookup_failed err=%v", orderID, err)
		return nil, err
	}
	return receipt, nil
}

// settlePurchase settles a tokenization session from the purchase reply.
func (r *Reconciler) settlePurchase(ctx context.Context, orderID, dataKey string, receipt *gateway.PurchaseReceipt) (*domain.CheckoutSession, error) {
	return r.apply(ctx, "purchase", orderID, dataKey, func(session *domain.CheckoutSession) (*domain.Settlement, error) {
		return classifyPurchaseReceipt(session, receipt)
	})
}

// fail marks a submitted session FAILED when the gateway outcome is unknown.
func (r *Reconciler) fail(ctx context.Context, orderID, token string, reason domain.FailureReason) (*domain.CheckoutSession, error) {
	return r.apply(ctx, "fail", orderID, token, func(*domain.CheckoutSession) (*domain.Settlement, error) {
		return &domain.Settlement{FailureReason: reason}, nil
	})
}

func (r *Reconciler) apply(ctx context.Context, op, orderID, token string, settle settleFunc) (*domain.CheckoutSession, error) {
	unlock, err := lockOrder(ctx, r.locker, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := loadSession(ctx, r.sessions, orderID)
	if err != nil {
		return nil, err
	}

	if session.Token() != token {
		log.Printf("layer=service component=reconciler op=%s order_id=%s token mismatch", op, orderID)
		return nil, ErrTokenMismatch
	}

	if session.State != domain.SessionStateTicketIssued && session.State != domain.SessionStatePaymentSubmitted {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, orderID, session.State)
	}

	settlement, outcome := settle(session)
	if settlement == nil {
		return nil, outcome
	}

	now := time.Now()

	// A receipt for an issued ticket implies the donor submitted payment.
	if session.State == domain.SessionStateTicketIssued {
		if err := transition(session, domain.SessionStatePaymentSubmitted, now); err != nil {
			return nil, err
		}
		session.TokenConsumed = true
	}

	next := domain.SessionStateFailed
	if settlement.Approved {
		next = domain.SessionStateCompleted
	}
	if err := transition(session, next, now); err != nil {
		return nil, err
	}
	session.Result = settlement

	if err := r.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	log.Printf("layer=service component=reconciler op=%s order_id=%s state=%s approved=%t reason=%s response_code=%s",
		op, orderID, session.State, settlement.Approved, settlement.FailureReason, settlement.ResponseCode)
	return session, outcome
}

// classifyCheckoutReceipt approves only an explicit success whose charged
// amount equals the session amount.
func classifyCheckoutReceipt(session *domain.CheckoutSession, receipt *checkoutReceipt) (*domain.Settlement, error) {
	if receipt.Request.OrderNo != "" && receipt.Request.OrderNo != session.OrderID {
		return nil, fmt.Errorf("%w: receipt is for order %s", ErrTokenMismatch, receipt.Request.OrderNo)
	}
	if receipt.Ticket != "" && receipt.Ticket != session.Ticket {
		return nil, fmt.Errorf("%w: receipt is for another ticket", ErrTokenMismatch)
	}

	settlement := &domain.Settlement{}
	reported := receipt.Request.CCTotal
	approved := bool(receipt.Success)

	if rc := receipt.Receipt; rc != nil {
		settlement.TransactionID = rc.CC.TransactionNo
		settlement.ReferenceNumber = rc.CC.ReferenceNo
		settlement.ApprovalCode = rc.CC.ApprovalCode
		settlement.ResponseCode = rc.CC.ResponseCode
		settlement.CardType = rc.CC.CardType
		settlement.TransactionTime = rc.CC.TransactionDateTime
		settlement.Message = rc.CC.Message
		if rc.CC.Amount != "" {
			reported = rc.CC.Amount
		}
		if rc.Result != "" && !strings.EqualFold(rc.Result, "a") {
			approved = false
		}
	}

	return classifyAmount(session, settlement, approved, reported)
}

// classifyPurchaseReceipt approves only a complete receipt with a numeric
// response code below the approval limit.
func classifyPurchaseReceipt(session *domain.CheckoutSession, receipt *gateway.PurchaseReceipt) (*domain.Settlement, error) {
	if id := strings.TrimSpace(receipt.ReceiptID); id != "" && id != "null" && id != session.OrderID {
		return nil, fmt.Errorf("%w: receipt is for order %s", ErrTokenMismatch, id)
	}

	settlement := &domain.Settlement{
		TransactionID:   receipt.TransID,
		ReferenceNumber: receipt.ReferenceNum,
		ApprovalCode:    receipt.AuthCode,
		ResponseCode:    receipt.ResponseCode,
		CardType:        receipt.CardType,
		TransactionTime: strings.TrimSpace(receipt.TransDate + " " + receipt.TransTime),
		Message:         strings.TrimSpace(receipt.Message),
	}

	code, err := strconv.Atoi(strings.TrimSpace(receipt.ResponseCode))
	approved := err == nil &&
		code < approvedResponseCodeLimit &&
		strings.EqualFold(strings.TrimSpace(receipt.Complete), "true")

	return classifyAmount(session, settlement, approved, receipt.TransAmount)
}

func classifyAmount(session *domain.CheckoutSession, settlement *domain.Settlement, approved bool, reported string) (*domain.Settlement, error) {
	if !approved {
		settlement.FailureReason = domain.FailureDeclined
		return settlement, ErrPaymentDeclined
	}

	charged, ok := amountsMatch(session, reported)
	settlement.Amount = charged
	if !ok {
		settlement.FailureReason = domain.FailureAmountMismatch
		return settlement, fmt.Errorf("%w: charged %q for %s", ErrAmountMismatch, reported, session.Amount.StringFixed(2))
	}

	settlement.Approved = true
	return settlement, nil
}
