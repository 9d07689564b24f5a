package data

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/cache"
	"github.com/PaulBabatuyi/socialchat/internal/logging"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// ConversationStore is the set of conversation operations the API depends on.
type ConversationStore interface {
	CreateConversation(ctx context.Context, participantIDs []bson.ObjectID) (*Conversation, error)
	FindConversation(ctx context.Context, participantIDs []bson.ObjectID) (*Conversation, error)
	GetConversation(ctx context.Context, id bson.ObjectID) (*Conversation, error)
	ListConversations(ctx context.Context, userID bson.ObjectID) ([]*Conversation, error)
}

var _ ConversationStore = (*ConversationsStore)(nil)

// CachedConversations serves GetConversation from a cache. Participant sets never
// change, so a cached entry stays valid for membership checks; the preview fields are
// dropped before caching because they do change.
type CachedConversations struct {
	ConversationStore

	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedConversations wraps next with a read-through cache.
func NewCachedConversations(next ConversationStore, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedConversations {
	return &CachedConversations{ConversationStore: next, cache: c, ttl: ttl, logger: logger}
}

func conversationCacheKey(id bson.ObjectID) string {
	return "conversation:" + id.Hex()
}

// GetConversation returns the cached conversation or loads and caches it. Cache
// failures degrade to a direct read.
func (c *CachedConversations) GetConversation(ctx context.Context, id bson.ObjectID) (*Conversation, error) {
	key := conversationCacheKey(id)
	log := logging.WithContext(ctx, c.logger)

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var conv Conversation
		if jsonErr := json.Unmarshal([]byte(raw), &conv); jsonErr == nil {
			return &conv, nil
		}
		log.Warn("discarding undecodable cached conversation", zap.String("key", key))
	case !errors.Is(err, cache.ErrMiss):
		log.Warn("conversation cache read failed", zap.Error(err))
	}

	conv, err := c.ConversationStore.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	entry := *conv
	entry.LastMessage = nil
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Warn("encode conversation for cache", zap.Error(err))
		return conv, nil
	}
	if err := c.cache.Set(ctx, key, string(payload), c.ttl); err != nil {
		log.Warn("conversation cache write failed", zap.Error(err))
	}
	return conv, nil
}
