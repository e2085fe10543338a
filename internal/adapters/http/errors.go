package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
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

// classify maps a core error onto an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionClosed):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrPermissionDenied):
		return fiber.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrSubscriptionActive),
		errors.Is(err, domain.ErrNoPendingRequest),
		errors.Is(err, domain.ErrMatchInProgress):
		return fiber.StatusConflict, "conflict"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// errFromDomain maps core errors onto the API error envelope.
func errFromDomain(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status == fiber.StatusInternalServerError {
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
	return newError(c, status, code, err.Error())
}
