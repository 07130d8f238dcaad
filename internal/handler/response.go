package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"donation/internal/gateway"
	"donation/internal/service"
)

const (
	msgGatewayUnavailable = "payment gateway unavailable"
	msgInternal           = "internal server error"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Gateway and internal failures get a generic message; the cause is only logged.
func respondError(c *gin.Context, err error) {
	respondErrorWithDetails(c, err, nil)
}

func respondErrorWithDetails(c *gin.Context, err error, details any) {
	code := mapErrorToHTTPStatus(err)

	msg := err.Error()
	switch {
	case code == http.StatusBadGateway:
		msg = msgGatewayUnavailable
	case code >= http.StatusInternalServerError:
		msg = msgInternal
	}

	var rejected *gateway.TicketRejectedError
	if details == nil && errors.As(err, &rejected) && len(rejected.Payload) > 0 {
		details = rejected.Payload
	}

	if code >= http.StatusInternalServerError {
		log.Printf("layer=handler method=%s path=%s status=%d err=%v", c.Request.Method, c.FullPath(), code, err)
	}

	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: msg, Details: details})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service and gateway errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrUnknownOrder):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrAmountOutOfPolicy),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrMissingToken),
		errors.Is(err, service.ErrMalformedPayload):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrOrderExists),
		errors.Is(err, service.ErrTokenMismatch),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrFlowMismatch),
		errors.Is(err, service.ErrSessionBusy):
		return http.StatusConflict

	// Gateway said no
	case errors.Is(err, gateway.ErrTicketRejected),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrPaymentDeclined):
		return http.StatusUnprocessableEntity

	// Gateway could not be used
	case errors.Is(err, gateway.ErrGatewayUnreachable),
		errors.Is(err, gateway.ErrMalformedResponse):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
