package middleware

import (
	"mime"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fastjson"
)

// RequireJSON checks the Content-Type header and that the body is well-formed JSON
// before the handler decodes it. A missing Content-Type is treated as JSON.
func RequireJSON() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ct := c.Get(fiber.HeaderContentType); ct != "" {
			mt, _, err := mime.ParseMediaType(ct)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed Content-Type header"})
			}
			if mt != fiber.MIMEApplicationJSON {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "Content-Type must be application/json"})
			}
		} else {
			c.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
		}

		body := c.Body()
		if len(body) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no body provided"})
		}
		if err := fastjson.ValidateBytes(body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed JSON"})
		}
		return c.Next()
	}
}
