package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/roadclosures/capture/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errValidation returns a 422 with the field that failed.
func errValidation(c *fiber.Ctx, verr *domain.ValidationError) error {
	return newError(c, 422, "validation_"+verr.Reason, verr.Message)
}

// errFromDomain maps core errors onto HTTP responses.
func errFromDomain(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNoSession):
		return errNotFound(c, "no active capture session")
	case errors.Is(err, domain.ErrSessionActive):
		return errConflict(c, "a capture session is already active; pass force=true to replace it")
	case errors.As(err, &verr):
		return errValidation(c, verr)
	default:
		return errInternal(c, err.Error())
	}
}
