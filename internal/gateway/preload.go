package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"donation/internal/domain"
)

// TicketRequest contains the parameters for a preload (ticket) request.
type TicketRequest struct {
	OrderID    string
	CustomerID string
	Amount     decimal.Decimal
	Donor      *domain.Donor
}

type contactDetails struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type billingDetails struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Address1   string `json:"address_1"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

type preloadRequest struct {
	StoreID           string          `json:"store_id"`
	APIToken          string          `json:"api_token"`
	CheckoutID        string          `json:"checkout_id"`
	TxnTotal          string          `json:"txn_total"`
	Environment       string          `json:"environment"`
	Action            string          `json:"action"`
	OrderNo           string          `json:"order_no"`
	CustID            string          `json:"cust_id"`
	DynamicDescriptor string          `json:"dynamic_descriptor"`
	Language          string          `json:"language"`
	ContactDetails    *contactDetails `json:"contact_details,omitempty"`
	BillingDetails    *billingDetails `json:"billing_details,omitempty"`
	AskCVV            string          `json:"ask_cvv"`
}

// envelope is the outer shape of every checkout API reply.
type envelope struct {
	Response json.RawMessage `json:"response"`
}

type preloadResult struct {
	Success Flag   `json:"success"`
	Ticket  string `json:"ticket"`
}

// RequestTicket sends a preload request and returns the issued ticket.
func (c *Client) RequestTicket(ctx context.Context, req TicketRequest) (string, error) {
	const op = "preload"

	body := preloadRequest{
		StoreID:           c.cfg.StoreID,
		APIToken:          c.cfg.APIToken,
		CheckoutID:        c.cfg.CheckoutID,
		TxnTotal:          req.Amount.StringFixed(2),
		Environment:       c.cfg.Environment,
		Action:            "preload",
		OrderNo:           req.OrderID,
		CustID:            req.CustomerID,
		DynamicDescriptor: "Donation",
		Language:          "en",
		AskCVV:            "Y",
	}
	if d := req.Donor; d != nil {
		body.ContactDetails = &contactDetails{
			FirstName: d.FirstName,
			LastName:  d.LastName,
			Email:     d.Email,
			Phone:     d.Phone,
		}
		if d.Address != "" || d.PostalCode != "" {
			body.BillingDetails = &billingDetails{
				FirstName:  d.FirstName,
				LastName:   d.LastName,
				Address1:   d.Address,
				City:       d.City,
				Province:   d.Province,
				Country:    d.Country,
				PostalCode: d.PostalCode,
			}
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", op, err)
	}

	log.Printf("layer=gateway component=client op=%s order_no=%s txn_total=%s store_id=%s api_token=%s",
		op, body.OrderNo, body.TxnTotal, body.StoreID, redacted)

	resp, err := c.post(ctx, op, c.cfg.CheckoutURL, "application/json", payload)
	if err != nil {
		return "", err
	}

	result, raw, err := decodeCheckoutResponse[preloadResult](resp, op)
	if err != nil {
		return "", err
	}

	if !bool(result.Success) || result.Ticket == "" {
		log.Printf("layer=gateway component=client op=%s order_no=%s rejected response=%s", op, body.OrderNo, raw)
		return "", &TicketRejectedError{Payload: raw}
	}

	return result.Ticket, nil
}

// decodeCheckoutResponse parses the JSON envelope and its response object.
// It returns the raw response object alongside the typed view.
func decodeCheckoutResponse[T any](resp *Response, op string) (*T, json.RawMessage, error) {
	if resp.Format != FormatJSON {
		log.Printf("layer=gateway component=client op=%s status=%d content_type=%q malformed body=%q",
			op, resp.StatusCode, resp.ContentType, resp.Body)
		return nil, nil, resp.malformed(op, fmt.Errorf("expected json, got %s", resp.Format))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		log.Printf("layer=gateway component=client op=%s status=%d malformed body=%q", op, resp.StatusCode, resp.Body)
		return nil, nil, resp.malformed(op, err)
	}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		return nil, nil, resp.malformed(op, errors.New("missing response object"))
	}

	var result T
	if err := json.Unmarshal(env.Response, &result); err != nil {
		return nil, nil, resp.malformed(op, err)
	}
	return &result, env.Response, nil
}
