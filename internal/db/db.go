// Package db manages MongoDB connections, collections and indexes.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/logging"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the application database; collections are resolved lazily from it
	db *mongo.Database
}

// New connects to MongoDB, verifies the connection and returns a Client bound to
// database. When logger is non-nil every command is traced at debug level.
func New(ctx context.Context, mongoURI, database string, logger *zap.Logger) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second) // fail fast if MongoDB is unreachable
	if logger != nil {
		opts.SetMonitor(CommandMonitor(logger))
	}

	// Connect only builds the client; the ping below is the real connection test
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// CommandMonitor logs driver commands with the request id carried by the command's context.
func CommandMonitor(logger *zap.Logger) *event.CommandMonitor {
	logger = logger.Named("mongo")
	fields := func(ctx context.Context, name string, requestID int64) []zap.Field {
		f := []zap.Field{zap.String("command", name), zap.Int64("mongo_request_id", requestID)}
		if id, ok := logging.IDFromContext(ctx); ok {
			f = append([]zap.Field{zap.String("request_id", id)}, f...)
		}
		return f
	}

	return &event.CommandMonitor{
		Started: func(ctx context.Context, e *event.CommandStartedEvent) {
			logger.Debug("command started", append(fields(ctx, e.CommandName, e.RequestID), zap.String("database", e.DatabaseName))...)
		},
		Succeeded: func(ctx context.Context, e *event.CommandSucceededEvent) {
			logger.Debug("command succeeded", append(fields(ctx, e.CommandName, e.RequestID), zap.Duration("duration", e.Duration))...)
		},
		Failed: func(ctx context.Context, e *event.CommandFailedEvent) {
			logger.Warn("command failed", append(fields(ctx, e.CommandName, e.RequestID), zap.Duration("duration", e.Duration), zap.Any("failure", e.Failure))...)
		},
	}
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ConversationsCollection returns the conversations collection.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Ping checks that the primary is reachable. Used by the health endpoints.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Drop removes the whole database. Tests use it to clean up after themselves.
func (c *Client) Drop(ctx context.Context) error {
	return c.db.Drop(ctx)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on. It is idempotent.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== USERS =====
	// Unique email and username back ErrDuplicate on signup
	usersIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, usersIndexes); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// ===== CONVERSATIONS =====
	// participants_key is the sorted participant set; uniqueness makes find-or-create race free
	conversationIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	}
	if _, err := c.ConversationsCollection().Indexes().CreateMany(ctx, conversationIndexes); err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}

	// ===== MESSAGES =====
	// History is read per conversation in send order
	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seen", Value: 1}}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}
