package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned by NewClient when a credential or endpoint is empty.
	ErrMissingCredential = errors.New("gateway credential missing")

	// ErrGatewayUnreachable is returned when the gateway cannot be reached or times out.
	ErrGatewayUnreachable = errors.New("gateway unreachable")

	// ErrMalformedResponse is returned when the gateway body cannot be parsed.
	ErrMalformedResponse = errors.New("malformed gateway response")

	// ErrTicketRejected is returned when the gateway answers a preload without a ticket.
	ErrTicketRejected = errors.New("ticket issuance rejected")
)

// UnreachableError wraps a transport failure.
type UnreachableError struct {
	Op  string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGatewayUnreachable, e.Op, e.Err)
}

func (e *UnreachableError) Unwrap() []error {
	return []error{ErrGatewayUnreachable, e.Err}
}

// MalformedResponseError keeps the raw gateway body for diagnostics.
type MalformedResponseError struct {
	Op          string
	StatusCode  int
	ContentType string
	Body        []byte
	Err         error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (status %d): %v", ErrMalformedResponse, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s (status %d)", ErrMalformedResponse, e.Op, e.StatusCode)
}

func (e *MalformedResponseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Err}
}

// TicketRejectedError carries the gateway's response object verbatim.
type TicketRejectedError struct {
	Payload json.RawMessage
}

func (e *TicketRejectedError) Error() string {
	return ErrTicketRejected.Error()
}

func (e *TicketRejectedError) Unwrap() error {
	return ErrTicketRejected
}
