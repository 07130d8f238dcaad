package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"donation/internal/config"
)

const maxResponseBytes = 1 << 20

// Client talks to the hosted checkout gateway.
type Client struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
}

// NewClient creates a gateway client. Every credential and endpoint must be set;
// there is no fallback to sample values.
func NewClient(cfg config.GatewayConfig, httpClient *http.Client) (*Client, error) {
	var missing []string
	if cfg.StoreID == "" {
		missing = append(missing, "store id")
	}
	if cfg.APIToken == "" {
		missing = append(missing, "api token")
	}
	if cfg.CheckoutID == "" {
		missing = append(missing, "checkout id")
	}
	if cfg.CheckoutURL == "" {
		missing = append(missing, "checkout url")
	}
	if cfg.PurchaseURL == "" {
		missing = append(missing, "purchase url")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// Environment returns the configured gateway environment (qa or prod).
func (c *Client) Environment() string {
	return c.cfg.Environment
}

// post sends body and returns the tagged response. Transport and read
// failures, including the client timeout, become *UnreachableError.
func (c *Client) post(ctx context.Context, op, url, contentType string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("layer=gateway component=client op=%s err=%v", op, err)
		return nil, &UnreachableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Printf("layer=gateway component=client op=%s status=%d read_err=%v", op, resp.StatusCode, err)
		return nil, &UnreachableError{Op: op, Err: err}
	}

	ct := resp.Header.Get("Content-Type")
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: ct,
		Format:      detectFormat(ct, raw),
		Body:        raw,
	}, nil
}

// redacted replaces secrets in log lines.
const redacted = "***"
