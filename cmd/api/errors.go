package main

import (
	"errors"
	"strings"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/logging"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// errInvalidCredentials is returned by login for unknown emails and wrong passwords alike.
var errInvalidCredentials = errors.New("invalid credentials")

// statusFor maps a store or handler error to its HTTP status and client message.
// Unknown errors become 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, data.ErrValidation):
		return fiber.StatusBadRequest, publicMessage(err)
	case errors.Is(err, data.ErrNotFound):
		return fiber.StatusNotFound, publicMessage(err)
	case errors.Is(err, data.ErrForbidden):
		return fiber.StatusForbidden, publicMessage(err)
	case errors.Is(err, data.ErrDuplicate):
		return fiber.StatusConflict, publicMessage(err)
	case errors.Is(err, errInvalidCredentials):
		return fiber.StatusUnauthorized, errInvalidCredentials.Error()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	return fiber.StatusInternalServerError, "internal server error"
}

// publicMessage strips the chain down to the text callers may see. Sentinel-wrapped
// errors are built as "<sentinel>: <detail>" so the whole string is safe to show.
func publicMessage(err error) string {
	return strings.TrimSpace(err.Error())
}

// errorResponse writes {"error": ...} and logs server-side failures.
func (s *Server) errorResponse(c *fiber.Ctx, err error) error {
	code, msg := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		logging.WithContext(c.UserContext(), s.logger).Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// fiberErrorHandler renders errors returned by handlers and middleware.
func (s *Server) fiberErrorHandler(c *fiber.Ctx, err error) error {
	return s.errorResponse(c, err)
}
