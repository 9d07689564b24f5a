package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/logging"
	"github.com/PaulBabatuyi/socialchat/internal/realtime"
	"github.com/PaulBabatuyi/socialchat/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// sendMessageInput is the body of POST /api/messages.
type sendMessageInput struct {
	ConversationID string `json:"conversationId"`
	RecipientID    string `json:"recipientId"`
	Text           string `json:"text"`
	Img            string `json:"img"`
}

// participantConversation loads a conversation and checks that userID belongs to it.
func (s *Server) participantConversation(ctx context.Context, userID, conversationID bson.ObjectID) (*data.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", data.ErrForbidden)
	}
	return conv, nil
}

// directConversation finds or creates the two-party conversation between sender and
// the recipient, who must exist.
func (s *Server) directConversation(ctx context.Context, sender bson.ObjectID, recipientHex string) (*data.Conversation, error) {
	recipient, err := data.ParseID(recipientHex)
	if err != nil {
		return nil, err
	}
	if recipient == sender {
		return nil, fmt.Errorf("%w: cannot message yourself", data.ErrValidation)
	}
	ok, err := s.users.UsersExist(ctx, []bson.ObjectID{recipient})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: recipient %s", data.ErrNotFound, recipient.Hex())
	}

	pair := []bson.ObjectID{sender, recipient}
	conv, err := s.conversations.FindConversation(ctx, pair)
	if err != nil || conv != nil {
		return conv, err
	}
	return s.conversations.CreateConversation(ctx, pair)
}

// sendMessage persists a message and pushes it to the other participants.
func (s *Server) sendMessage(ctx context.Context, sender bson.ObjectID, in sendMessageInput) (*data.Message, error) {
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.Img) == "" {
		return nil, fmt.Errorf("%w: message needs text or img", data.ErrValidation)
	}

	var (
		conv *data.Conversation
		err  error
	)
	switch {
	case in.ConversationID != "":
		var id bson.ObjectID
		if id, err = data.ParseID(in.ConversationID); err != nil {
			return nil, err
		}
		conv, err = s.participantConversation(ctx, sender, id)
	case in.RecipientID != "":
		conv, err = s.directConversation(ctx, sender, in.RecipientID)
	default:
		err = fmt.Errorf("%w: conversationId or recipientId is required", data.ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	img, err := storage.ResolveImage(ctx, s.images, "messages/"+conv.ID.Hex(), in.Img)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) || errors.Is(err, storage.ErrDisabled) {
			return nil, fmt.Errorf("%w: %v", data.ErrValidation, err)
		}
		return nil, fmt.Errorf("upload image: %w", err)
	}

	uploaded := img != "" && strings.HasPrefix(strings.TrimSpace(in.Img), "data:")

	msg, err := s.messages.CreateMessage(ctx, conv.ID, sender, in.Text, img)
	if err != nil {
		if msg == nil {
			if uploaded {
				s.discardImage(ctx, img)
			}
			return nil, err
		}
		// the message is stored; only the conversation preview is stale
		logging.WithContext(ctx, s.logger).Warn("message saved without preview update", zap.Error(err))
	}

	event := realtime.NewMessage(msg)
	for _, p := range conv.Others(sender) {
		s.dispatcher.Dispatch(event, p.Hex())
	}
	return msg, nil
}

// discardImage deletes an object uploaded for a message that was never stored.
func (s *Server) discardImage(ctx context.Context, url string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.images.Delete(ctx, url); err != nil {
		logging.WithContext(ctx, s.logger).Warn("orphaned image left in storage", zap.String("url", url), zap.Error(err))
	}
}

// listMessages returns a conversation's history for one of its participants.
func (s *Server) listMessages(ctx context.Context, caller, conversationID bson.ObjectID) ([]*data.Message, error) {
	if _, err := s.participantConversation(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, conversationID)
}

// markMessageSeen acknowledges a message on behalf of a participant other than its
// sender and notifies the sender the first time.
func (s *Server) markMessageSeen(ctx context.Context, caller, messageID bson.ObjectID) (*data.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.participantConversation(ctx, caller, msg.ConversationID); err != nil {
		return nil, err
	}
	if msg.Sender == caller {
		return nil, fmt.Errorf("%w: senders cannot mark their own messages as seen", data.ErrForbidden)
	}

	updated, changed, err := s.messages.MarkSeen(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.dispatcher.Dispatch(
			realtime.MessagesSeen(msg.ConversationID.Hex(), msg.ID.Hex(), caller.Hex()),
			msg.Sender.Hex(),
		)
	}
	return updated, nil
}

// markConversationSeen marks everything the caller received in a conversation as seen.
func (s *Server) markConversationSeen(ctx context.Context, caller, conversationID bson.ObjectID) (int64, error) {
	conv, err := s.participantConversation(ctx, caller, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := s.messages.MarkConversationSeen(ctx, conversationID, caller)
	if err != nil {
		return n, err
	}
	if n > 0 {
		event := realtime.MessagesSeen(conversationID.Hex(), "", caller.Hex())
		for _, p := range conv.Others(caller) {
			s.dispatcher.Dispatch(event, p.Hex())
		}
	}
	return n, nil
}

// createConversation finds or creates the conversation between caller and
// participants. The bool reports whether it was created by this call.
func (s *Server) createConversation(ctx context.Context, caller bson.ObjectID, participants []string) (*data.Conversation, bool, error) {
	ids := make([]bson.ObjectID, 0, len(participants)+1)
	ids = append(ids, caller)
	for _, p := range participants {
		id, err := data.ParseID(p)
		if err != nil {
			return nil, false, err
		}
		ids = append(ids, id)
	}

	set, _, err := data.ParticipantSet(ids)
	if err != nil {
		return nil, false, err
	}
	ok, err := s.users.UsersExist(ctx, set)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: one or more participants do not exist", data.ErrNotFound)
	}

	existing, err := s.conversations.FindConversation(ctx, set)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	conv, err := s.conversations.CreateConversation(ctx, set)
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}
