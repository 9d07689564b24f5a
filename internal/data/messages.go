package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	coll *mongo.Collection
	// conversations is needed to check the owning conversation and keep its preview fresh
	conversations *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the messages and conversations collections.
func NewMessagesStore(coll, conversations *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll, conversations: conversations}
}

// CreateMessage validates and inserts a message, then updates the conversation preview.
func (m *MessagesStore) CreateMessage(ctx context.Context, conversationID, senderID bson.ObjectID, text, img string) (*Message, error) {
	text = strings.TrimSpace(text)
	img = strings.TrimSpace(img)

	// A message must carry text, an image, or both
	if text == "" && img == "" {
		return nil, fmt.Errorf("%w: message needs text or img", ErrValidation)
	}
	if senderID.IsZero() {
		return nil, fmt.Errorf("%w: sender is required", ErrValidation)
	}

	// The owning conversation must exist; Limit(1) stops the count at the first match
	count, err := m.conversations.CountDocuments(ctx, bson.M{"_id": conversationID}, options.Count().SetLimit(1))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID.Hex())
	}

	now := time.Now().UTC()
	msg := &Message{
		ConversationID: conversationID,
		Sender:         senderID,
		Text:           text,
		Img:            img,
		Seen:           false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)

	// Refresh the preview; the message itself is already durable
	_, err = m.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{
			"last_message": LastMessage{Text: text, Sender: senderID, Seen: false},
			"updated_at":   now,
		}},
	)
	if err != nil {
		return msg, fmt.Errorf("update conversation preview: %w", err)
	}

	return msg, nil
}

// GetMessage loads a single message by id.
func (m *MessagesStore) GetMessage(ctx context.Context, id bson.ObjectID) (*Message, error) {
	var msg Message
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, id.Hex())
		}
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns every message of a conversation ordered oldest→newest.
func (m *MessagesStore) ListMessages(ctx context.Context, conversationID bson.ObjectID) ([]*Message, error) {
	// _id breaks ties between messages created in the same millisecond
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := m.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*Message{}
	}
	return messages, nil
}

// MarkSeen flips seen to true. It is idempotent: an already seen message is returned
// unchanged. The bool reports whether this call performed the transition.
func (m *MessagesStore) MarkSeen(ctx context.Context, id bson.ObjectID) (*Message, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "seen": false},
		bson.M{"$set": bson.M{"seen": true, "updated_at": time.Now().UTC()}},
		opts,
	).Decode(&msg)
	if err == nil {
		return &msg, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	// No unseen match: either already seen or missing
	existing, err := m.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// MarkConversationSeen marks every unseen message not sent by readerID as seen and
// returns how many changed.
func (m *MessagesStore) MarkConversationSeen(ctx context.Context, conversationID, readerID bson.ObjectID) (int64, error) {
	now := time.Now().UTC()

	result, err := m.coll.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "sender": bson.M{"$ne": readerID}, "seen": false},
		bson.M{"$set": bson.M{"seen": true, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}

	_, err = m.conversations.UpdateOne(ctx,
		bson.M{
			"_id":                 conversationID,
			"last_message":        bson.M{"$exists": true},
			"last_message.sender": bson.M{"$ne": readerID},
		},
		bson.M{"$set": bson.M{"last_message.seen": true}},
	)
	if err != nil {
		return result.ModifiedCount, fmt.Errorf("update conversation preview: %w", err)
	}

	return result.ModifiedCount, nil
}
