package service

import "errors"

var (
	// ErrInvalidAmount is returned when an amount is not a positive base-10 value in cents.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmountOutOfPolicy is returned when an amount exceeds the configured ceiling.
	ErrAmountOutOfPolicy = errors.New("amount out of policy")

	// ErrInvalidOrderID is returned when a caller-supplied order id is empty or malformed.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrMissingToken is returned when a ticket or data key is required but empty.
	ErrMissingToken = errors.New("missing ticket or data key")

	// ErrOrderExists is returned when a caller-supplied order id is already in use.
	ErrOrderExists = errors.New("order already exists")

	// ErrUnknownOrder is returned when no session exists for an order id.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrTokenMismatch is returned when a callback's ticket or data key does not match the session.
	ErrTokenMismatch = errors.New("token mismatch")

	// ErrAmountMismatch is returned when the charged amount differs from the session amount.
	ErrAmountMismatch = errors.New("amount mismatch")

	// ErrInvalidTransition is returned when an event does not fit the session's current state.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrFlowMismatch is returned when an operation targets a session of the other checkout flow.
	ErrFlowMismatch = errors.New("checkout flow mismatch")

	// ErrPaymentDeclined is returned when the gateway did not explicitly approve the payment.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrMalformedPayload is returned when a callback payload cannot be parsed.
	ErrMalformedPayload = errors.New("malformed gateway payload")

	// ErrSessionBusy is returned when the order lock could not be acquired.
	ErrSessionBusy = errors.New("session busy")
)
