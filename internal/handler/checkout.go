package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"donation/internal/domain"
	"donation/internal/middleware"
	"donation/internal/service"
)

// CheckoutService is the checkout surface used by CheckoutHandler.
type CheckoutService interface {
	StartCheckout(ctx context.Context, req service.StartCheckoutRequest) (*domain.CheckoutSession, error)
	MarkSubmitted(ctx context.Context, orderID, ticket string) (*domain.CheckoutSession, error)
	Cancel(ctx context.Context, orderID, token string) (*domain.CheckoutSession, error)
	CompletePurchase(ctx context.Context, req service.CompletePurchaseRequest) (*domain.CheckoutSession, error)
	GetSession(ctx context.Context, orderID string) (*domain.CheckoutSession, error)
}

// Reconciler settles sessions from relayed receipts.
type Reconciler interface {
	Reconcile(ctx context.Context, req service.ReconcileRequest) (*domain.CheckoutSession, error)
}

// Ensure the services implement the handler contracts.
var (
	_ CheckoutService = (*service.CheckoutService)(nil)
	_ Reconciler      = (*service.Reconciler)(nil)
)

// CheckoutHandler handles HTTP requests for donation checkout.
type CheckoutHandler struct {
	checkout   CheckoutService
	reconciler Reconciler
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout CheckoutService, reconciler Reconciler) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, reconciler: reconciler}
}

// DonorRequest carries optional donor details.
type DonorRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// TicketRequest is the HTTP request body for starting a checkout.
// Amount accepts a JSON string or number.
type TicketRequest struct {
	Amount  json.Number   `json:"amount"`
	OrderID string        `json:"orderId"`
	Donor   *DonorRequest `json:"donor"`
}

// TicketResponse is the HTTP response for a started checkout.
type TicketResponse struct {
	Success bool   `json:"success"`
	Ticket  string `json:"ticket"`
	OrderID string `json:"orderId"`
	Amount  string `json:"amount"`
}

// SessionEventRequest is the HTTP request body for widget events.
type SessionEventRequest struct {
	OrderID string `json:"orderId"`
	Ticket  string `json:"ticket"`
}

// SessionEventResponse is the HTTP response for widget events.
type SessionEventResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	State   string `json:"state"`
}

// ReceiptRequest is the HTTP request body for a relayed gateway receipt.
type ReceiptRequest struct {
	OrderID        string          `json:"orderId"`
	Ticket         string          `json:"ticket"`
	GatewayPayload json.RawMessage `json:"gatewayPayload"`
}

// ReceiptResponse is the HTTP response for a settled receipt.
type ReceiptResponse struct {
	Success bool            `json:"success"`
	Receipt *SettlementView `json:"receipt"`
}

// CompleteRequest is the HTTP request body for a tokenization purchase.
type CompleteRequest struct {
	OrderID string      `json:"orderId"`
	Amount  json.Number `json:"amount"`
	DataKey string      `json:"dataKey"`
}

// CompleteResponse is the HTTP response for a tokenization purchase.
type CompleteResponse struct {
	Success    bool            `json:"success"`
	OrderID    string          `json:"orderId"`
	Settlement *SettlementView `json:"settlement"`
}

// SettlementView is the public view of a settlement.
type SettlementView struct {
	OrderID         string `json:"orderId"`
	Approved        bool   `json:"approved"`
	TransactionID   string `json:"transactionId,omitempty"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	ApprovalCode    string `json:"approvalCode,omitempty"`
	ResponseCode    string `json:"responseCode,omitempty"`
	CardType        string `json:"cardType,omitempty"`
	Amount          string `json:"amount,omitempty"`
	TransactionTime string `json:"transactionTime,omitempty"`
	Message         string `json:"message,omitempty"`
	FailureReason   string `json:"failureReason,omitempty"`
}

// SessionView is the public view of a session. Tokens are never exposed.
type SessionView struct {
	OrderID       string          `json:"orderId"`
	Amount        string          `json:"amount"`
	Flow          string          `json:"flow"`
	State         string          `json:"state"`
	TokenConsumed bool            `json:"tokenConsumed"`
	Result        *SettlementView `json:"result,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// RequestTicket handles POST /checkout/ticket
func (h *CheckoutHandler) RequestTicket(c *gin.Context) {
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	middleware.SetOrderID(c, req.OrderID)

	session, err := h.checkout.StartCheckout(c.Request.Context(), service.StartCheckoutRequest{
		Amount:  req.Amount.String(),
		OrderID: req.OrderID,
		Donor:   toDonor(req.Donor),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.SetOrderID(c, session.OrderID)

	respondJSON(c, http.StatusOK, TicketResponse{
		Success: true,
		Ticket:  session.Ticket,
		OrderID: session.OrderID,
		Amount:  session.Amount.StringFixed(2),
	})
}

// MarkSubmitted handles POST /checkout/submitted
func (h *CheckoutHandler) MarkSubmitted(c *gin.Context) {
	h.sessionEvent(c, h.checkout.MarkSubmitted)
}

// Cancel handles POST /checkout/cancel
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	h.sessionEvent(c, h.checkout.Cancel)
}

func (h *CheckoutHandler) sessionEvent(
	c *gin.Context,
	apply func(ctx context.Context, orderID, token string) (*domain.CheckoutSession, error),
) {
	var req SessionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	middleware.SetOrderID(c, req.OrderID)

	session, err := apply(c.Request.Context(), req.OrderID, req.Ticket)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, SessionEventResponse{
		Success: true,
		OrderID: session.OrderID,
		State:   session.State.String(),
	})
}

// Receipt handles POST /checkout/receipt
func (h *CheckoutHandler) Receipt(c *gin.Context) {
	var req ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	middleware.SetOrderID(c, req.OrderID)

	session, err := h.reconciler.Reconcile(c.Request.Context(), service.ReconcileRequest{
		OrderID: req.OrderID,
		Token:   req.Ticket,
		Payload: req.GatewayPayload,
	})
	if err != nil {
		respondErrorWithDetails(c, err, settlementDetails(session))
		return
	}

	respondJSON(c, http.StatusOK, ReceiptResponse{
		Success: true,
		Receipt: toSettlementView(session),
	})
}

// Complete handles POST /checkout/complete
func (h *CheckoutHandler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	middleware.SetOrderID(c, req.OrderID)

	session, err := h.checkout.CompletePurchase(c.Request.Context(), service.CompletePurchaseRequest{
		OrderID: req.OrderID,
		Amount:  req.Amount.String(),
		DataKey: req.DataKey,
	})
	if err != nil {
		respondErrorWithDetails(c, err, settlementDetails(session))
		return
	}
	middleware.SetOrderID(c, session.OrderID)

	respondJSON(c, http.StatusOK, CompleteResponse{
		Success:    true,
		OrderID:    session.OrderID,
		Settlement: toSettlementView(session),
	})
}

// GetSession handles GET /checkout/sessions/:orderId
func (h *CheckoutHandler) GetSession(c *gin.Context) {
	orderID := c.Param("orderId")
	middleware.SetOrderID(c, orderID)

	session, err := h.checkout.GetSession(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, SessionView{
		OrderID:       session.OrderID,
		Amount:        session.Amount.StringFixed(2),
		Flow:          string(session.Flow),
		State:         session.State.String(),
		TokenConsumed: session.TokenConsumed,
		Result:        toSettlementView(session),
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	})
}

func toDonor(req *DonorRequest) *domain.Donor {
	if req == nil {
		return nil
	}
	return &domain.Donor{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		City:       req.City,
		Province:   req.Province,
		Country:    req.Country,
		PostalCode: req.PostalCode,
	}
}

func toSettlementView(session *domain.CheckoutSession) *SettlementView {
	if session == nil || session.Result == nil {
		return nil
	}
	r := session.Result

	view := &SettlementView{
		OrderID:         session.OrderID,
		Approved:        r.Approved,
		TransactionID:   r.TransactionID,
		ReferenceNumber: r.ReferenceNumber,
		ApprovalCode:    r.ApprovalCode,
		ResponseCode:    r.ResponseCode,
		CardType:        r.CardType,
		TransactionTime: r.TransactionTime,
		Message:         r.Message,
		FailureReason:   string(r.FailureReason),
	}
	if !r.Amount.IsZero() {
		view.Amount = r.Amount.StringFixed(2)
	}
	return view
}

// settlementDetails avoids handing a typed nil to the error body.
func settlementDetails(session *domain.CheckoutSession) any {
	if view := toSettlementView(session); view != nil {
		return view
	}
	return nil
}
