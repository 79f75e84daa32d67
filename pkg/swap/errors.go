package swap

import "errors"

var (
	ErrMissingParams    = errors.New("missing parameters")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownProvider  = errors.New("unknown swap provider")
	ErrNotConfigured    = errors.New("not configured")
	ErrPaymentNotFound  = errors.New("payment transaction not found")
	ErrPaymentInvalid   = errors.New("payment does not pay the treasury")
	ErrPaymentUsed      = errors.New("payment already used")
	ErrBuyerMismatch    = errors.New("buyer does not match order")
	ErrOrderNotPending  = errors.New("order is not pending")
	ErrAmountTooSmall   = errors.New("payment too small for one token unit")
	ErrProviderRejected = errors.New("swap provider rejected the request")
)
