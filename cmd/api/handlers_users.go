package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/logging"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const minPasswordLength = 6

type signupInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      *data.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// signupHandler handles POST /api/users/signup: hashes the password, stores the user
// and returns a token.
func (s *Server) signupHandler(c *fiber.Ctx) error {
	var in signupInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !strings.Contains(in.Email, "@") {
		return s.errorResponse(c, fmt.Errorf("%w: a valid email is required", data.ErrValidation))
	}
	if len(in.Password) < minPasswordLength {
		return s.errorResponse(c, fmt.Errorf("%w: password must be at least %d characters", data.ErrValidation, minPasswordLength))
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return s.errorResponse(c, fmt.Errorf("hash password: %w", err))
	}

	user, err := s.users.CreateUser(c.UserContext(), in.Name, in.Username, in.Email, hashed)
	if err != nil {
		return s.errorResponse(c, err)
	}

	resp, err := s.issueToken(user)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// loginHandler handles POST /api/users/login.
func (s *Server) loginHandler(c *fiber.Ctx) error {
	var in loginInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := s.users.GetUserByEmail(c.UserContext(), in.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return s.errorResponse(c, errInvalidCredentials)
		}
		return s.errorResponse(c, err)
	}
	if err := auth.CheckPassword(user.Password, in.Password); err != nil {
		return s.errorResponse(c, errInvalidCredentials)
	}

	resp, err := s.issueToken(user)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) issueToken(user *data.User) (*authResponse, error) {
	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &authResponse{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// getUserHandler handles GET /api/users/:id.
func (s *Server) getUserHandler(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return s.errorResponse(c, err)
	}
	user, err := s.users.GetUserByID(c.UserContext(), id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(user)
}

// onlineUsersHandler handles GET /api/users/online.
func (s *Server) onlineUsersHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"users": s.registry.Online()})
}

// healthHandler handles GET /health. The database is required; a failing cache only
// degrades the service since reads fall back to the store.
func (s *Server) healthHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			logging.WithContext(ctx, s.logger).Warn("health: database ping failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}

	status := "ok"
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			logging.WithContext(ctx, s.logger).Warn("health: cache ping failed", zap.Error(err))
			status = "degraded"
		}
	}
	return c.JSON(fiber.Map{"status": status, "online": s.registry.Len()})
}
