package app

import (
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"

	"donation/internal/config"
	"donation/internal/gateway"
)

// NewGatewayClient creates the card gateway client. Outbound calls carry the
// configured timeout and are recorded as New Relic external segments when a
// transaction is present in the request context.
func NewGatewayClient(cfg config.GatewayConfig) (*gateway.Client, error) {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: newrelic.NewRoundTripper(http.DefaultTransport),
	}
	return gateway.NewClient(cfg, httpClient)
}
