package helpers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"seamless/services"
)

// HookError renders the fixed error envelope. Codes are stable so callers
// branch on them, never on the message text.
func HookError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": err.Error(),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, "validation_error"
	case errors.Is(err, services.ErrUnknownGame):
		return fiber.StatusBadRequest, "unknown_game"
	case errors.Is(err, services.ErrUnsupportedCurrency):
		return fiber.StatusBadRequest, "unsupported_currency"
	case errors.Is(err, services.ErrInsufficientFunds):
		return fiber.StatusBadRequest, "insufficient_funds"
	case errors.Is(err, services.ErrInvalidSignature):
		return fiber.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, services.ErrUnknownCredential):
		return fiber.StatusUnauthorized, "unknown_api_key"
	case errors.Is(err, services.ErrStaleRequest):
		return fiber.StatusForbidden, "stale_request"
	case errors.Is(err, services.ErrReplayedRequest):
		return fiber.StatusForbidden, "replayed_request"
	case errors.Is(err, services.ErrSessionConflict):
		return fiber.StatusConflict, "session_conflict"
	case errors.Is(err, services.ErrUnknownSession):
		return fiber.StatusConflict, "unknown_session"
	case errors.Is(err, services.ErrTransactionConflict):
		return fiber.StatusConflict, "transaction_id_conflict"
	case errors.Is(err, services.ErrAlreadyRefunded):
		return fiber.StatusConflict, "already_refunded"
	case errors.Is(err, services.ErrUnknownReferencedTx):
		return fiber.StatusConflict, "unknown_referenced_transaction"
	case errors.Is(err, context.DeadlineExceeded):
		// Ran out of the processing budget before mutating anything.
		// The caller retries with the same transaction_id.
		return fiber.StatusServiceUnavailable, "internal"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}
