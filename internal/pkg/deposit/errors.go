package deposit

import "errors"

var (
	ErrAmountBelowMinimum = errors.New("amount below minimum deposit")
	ErrAmountAboveMaximum = errors.New("amount above maximum deposit")
	ErrInvalidStatus      = errors.New("invalid status filter")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrOrderCodeExhausted = errors.New("could not allocate a unique order code")
	ErrGateway            = errors.New("payment gateway error")
	ErrGatewayMissing     = errors.New("payment gateway not configured")

	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
