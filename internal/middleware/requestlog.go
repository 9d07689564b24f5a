package middleware

import (
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-ID"

// RequestLogger assigns a request id, stores it in the user context for the stores'
// command logging and logs each request once it has been handled.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := xid.New().String()
		c.SetUserContext(logging.NewContextWithID(c.UserContext(), id))
		c.Set(HeaderRequestID, id)

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		logger.Info("http request", fields...)
		return err
	}
}
