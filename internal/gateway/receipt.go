package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

type receiptRequest struct {
	StoreID     string `json:"store_id"`
	APIToken    string `json:"api_token"`
	CheckoutID  string `json:"checkout_id"`
	Ticket      string `json:"ticket"`
	Environment string `json:"environment"`
	Action      string `json:"action"`
}

// FetchReceipt asks the gateway for the authoritative receipt of a ticket.
// The response object is returned as-is; a declined receipt is not an error here.
func (c *Client) FetchReceipt(ctx context.Context, ticket string) (json.RawMessage, error) {
	const op = "receipt"

	payload, err := json.Marshal(receiptRequest{
		StoreID:     c.cfg.StoreID,
		APIToken:    c.cfg.APIToken,
		CheckoutID:  c.cfg.CheckoutID,
		Ticket:      ticket,
		Environment: c.cfg.Environment,
		Action:      "receipt",
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}

	log.Printf("layer=gateway component=client op=%s store_id=%s api_token=%s", op, c.cfg.StoreID, redacted)

	resp, err := c.post(ctx, op, c.cfg.CheckoutURL, "application/json", payload)
	if err != nil {
		return nil, err
	}

	_, raw, err := decodeCheckoutResponse[json.RawMessage](resp, op)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
