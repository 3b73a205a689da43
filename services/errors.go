package services

import "errors"

// Stable failure modes of the hook protocol. Handlers map these onto the
// response envelope; anything unrecognized is reported as internal and
// retriable.
var (
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrUnknownCredential   = errors.New("unknown api key")
	ErrStaleRequest        = errors.New("stale request")
	ErrReplayedRequest     = errors.New("replayed request")
	ErrValidation          = errors.New("validation error")
	ErrUnknownGame         = errors.New("unknown game")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrSessionConflict     = errors.New("session conflict")
	ErrUnknownSession      = errors.New("unknown session")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUnknownReferencedTx = errors.New("unknown referenced transaction")
	ErrAlreadyRefunded     = errors.New("already refunded")
	ErrTransactionConflict = errors.New("transaction id conflict")
)
