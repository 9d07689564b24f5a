package main

import (
	"github.com/gofiber/fiber/v2"
)

type createConversationInput struct {
	Participants []string `json:"participants"`
}

// createConversationHandler handles POST /api/conversations. 201 when created, 200
// when the participant set already had a conversation.
func (s *Server) createConversationHandler(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var in createConversationInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	conv, created, err := s.createConversation(c.UserContext(), caller, in.Participants)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(conv)
	}
	return c.JSON(conv)
}

// listConversationsHandler handles GET /api/conversations.
func (s *Server) listConversationsHandler(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	convs, err := s.conversations.ListConversations(c.UserContext(), caller)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(convs)
}

// markConversationSeenHandler handles PATCH /api/conversations/:id/seen.
func (s *Server) markConversationSeenHandler(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	conversationID, err := paramID(c, "id")
	if err != nil {
		return s.errorResponse(c, err)
	}

	n, err := s.markConversationSeen(c.UserContext(), caller, conversationID)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"conversationId": conversationID.Hex(), "updated": n})
}
