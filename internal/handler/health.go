package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"donation/internal/config"
)

// HealthHandler serves liveness and public configuration.
type HealthHandler struct {
	gateway  config.GatewayConfig
	checkout config.CheckoutConfig
	now      func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(gateway config.GatewayConfig, checkout config.CheckoutConfig) *HealthHandler {
	return &HealthHandler{gateway: gateway, checkout: checkout, now: time.Now}
}

// HealthResponse is the HTTP response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// PublicConfigResponse is the HTTP response for GET /checkout/config.
// It never includes the API token.
type PublicConfigResponse struct {
	Environment    string  `json:"environment"`
	StoreID        string  `json:"storeId"`
	CheckoutURL    string  `json:"checkoutUrl"`
	VerifyReceipts bool    `json:"verifyReceipts"`
	AmountCeiling  *string `json:"ceiling,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	respondJSON(c, http.StatusOK, HealthResponse{
		Status:      "ok",
		Timestamp:   h.now().UTC().Format(time.RFC3339),
		Environment: h.gateway.Environment,
	})
}

// Config handles GET /checkout/config
func (h *HealthHandler) Config(c *gin.Context) {
	resp := PublicConfigResponse{
		Environment:    h.gateway.Environment,
		StoreID:        h.gateway.StoreID,
		CheckoutURL:    h.gateway.CheckoutURL,
		VerifyReceipts: h.gateway.VerifyReceipts,
	}
	if h.checkout.AmountCeiling != nil {
		ceiling := h.checkout.AmountCeiling.StringFixed(2)
		resp.AmountCeiling = &ceiling
	}

	respondJSON(c, http.StatusOK, resp)
}
