package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConversationsStore provides conversation database operations.
type ConversationsStore struct {
	// coll is reference to "conversations" collection in MongoDB
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using given collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// CreateConversation inserts a conversation for the given participant set. If another
// request created the same set first, the existing conversation is returned instead.
func (s *ConversationsStore) CreateConversation(ctx context.Context, participantIDs []bson.ObjectID) (*Conversation, error) {
	participants, key, err := ParticipantSet(participantIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv := &Conversation{
		Participants:    participants,
		ParticipantsKey: key, // unique index makes concurrent creation converge
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result, err := s.coll.InsertOne(ctx, conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.findByKey(ctx, key)
		}
		return nil, err
	}

	conv.ID = result.InsertedID.(bson.ObjectID)
	return conv, nil
}

// FindConversation returns the conversation whose participant set is exactly
// participantIDs, or nil when there is none.
func (s *ConversationsStore) FindConversation(ctx context.Context, participantIDs []bson.ObjectID) (*Conversation, error) {
	_, key, err := ParticipantSet(participantIDs)
	if err != nil {
		return nil, err
	}

	conv, err := s.findByKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return conv, err
}

// GetConversation loads a conversation by id.
func (s *ConversationsStore) GetConversation(ctx context.Context, id bson.ObjectID) (*Conversation, error) {
	var conv Conversation
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, id.Hex())
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns the user's conversations, most recently active first.
func (s *ConversationsStore) ListConversations(ctx context.Context, userID bson.ObjectID) ([]*Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})

	// "participants" is an array; equality matches any element
	cursor, err := s.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []*Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []*Conversation{}
	}
	return convs, nil
}

func (s *ConversationsStore) findByKey(ctx context.Context, key string) (*Conversation, error) {
	var conv Conversation
	err := s.coll.FindOne(ctx, bson.M{"participants_key": key}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: conversation", ErrNotFound)
		}
		return nil, err
	}
	return &conv, nil
}
