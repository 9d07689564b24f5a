package main

import (
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// callerID returns the authenticated user's id.
func callerID(c *fiber.Ctx) (bson.ObjectID, error) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return bson.NilObjectID, fiber.NewError(fiber.StatusUnauthorized, "missing auth claims")
	}
	id, err := claims.ObjectID()
	if err != nil {
		return bson.NilObjectID, fiber.NewError(fiber.StatusUnauthorized, "invalid token subject")
	}
	return id, nil
}

// paramID parses a path parameter as an ObjectID.
func paramID(c *fiber.Ctx, name string) (bson.ObjectID, error) {
	return data.ParseID(c.Params(name))
}

// sendMessageHandler handles POST /api/messages.
func (s *Server) sendMessageHandler(c *fiber.Ctx) error {
	sender, err := callerID(c)
	if err != nil {
		return err
	}

	var in sendMessageInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	msg, err := s.sendMessage(c.UserContext(), sender, in)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// listMessagesHandler handles GET /api/messages/:conversationId.
func (s *Server) listMessagesHandler(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	conversationID, err := paramID(c, "conversationId")
	if err != nil {
		return s.errorResponse(c, err)
	}

	messages, err := s.listMessages(c.UserContext(), caller, conversationID)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(messages)
}

// markMessageSeenHandler handles PATCH /api/messages/:id/seen.
func (s *Server) markMessageSeenHandler(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	messageID, err := paramID(c, "id")
	if err != nil {
		return s.errorResponse(c, err)
	}

	msg, err := s.markMessageSeen(c.UserContext(), caller, messageID)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(msg)
}
