package main

import (
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// httpOptions are the fiber settings taken from config.
type httpOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// routes builds the fiber app: REST API under /api, the websocket at /ws and /health.
func (s *Server) routes(limiter *middleware.LimiterStore, opts httpOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "socialchat",
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          s.fiberErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestLogger(s.logger))

	app.Get("/health", s.healthHandler)

	requireAuth := middleware.AuthRequired(s.auth)
	jsonBody := middleware.RequireJSON()

	api := app.Group("/api")

	users := api.Group("/users")
	users.Post("/signup", middleware.RateLimit(limiter, middleware.EmailOrIP), jsonBody, s.signupHandler)
	users.Post("/login", middleware.RateLimit(limiter, middleware.EmailOrIP), jsonBody, s.loginHandler)
	users.Get("/online", requireAuth, s.onlineUsersHandler)
	users.Get("/:id", requireAuth, s.getUserHandler)

	messages := api.Group("/messages", requireAuth)
	messages.Post("/", jsonBody, s.sendMessageHandler)
	messages.Get("/:conversationId", s.listMessagesHandler)
	messages.Patch("/:id/seen", s.markMessageSeenHandler)

	conversations := api.Group("/conversations", requireAuth)
	conversations.Post("/", jsonBody, s.createConversationHandler)
	conversations.Get("/", s.listConversationsHandler)
	conversations.Patch("/:id/seen", s.markConversationSeenHandler)

	app.Use("/ws", requireAuth, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.serveSocket))

	return app
}
