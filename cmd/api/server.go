package main

import (
	"context"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/realtime"
	"github.com/PaulBabatuyi/socialchat/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// userStore is the subset of data.UsersStore the handlers use.
type userStore interface {
	CreateUser(ctx context.Context, name, username, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	UsersExist(ctx context.Context, ids []bson.ObjectID) (bool, error)
}

// messageStore is the subset of data.MessagesStore the handlers use.
type messageStore interface {
	CreateMessage(ctx context.Context, conversationID, senderID bson.ObjectID, text, img string) (*data.Message, error)
	GetMessage(ctx context.Context, id bson.ObjectID) (*data.Message, error)
	ListMessages(ctx context.Context, conversationID bson.ObjectID) ([]*data.Message, error)
	MarkSeen(ctx context.Context, id bson.ObjectID) (*data.Message, bool, error)
	MarkConversationSeen(ctx context.Context, conversationID, readerID bson.ObjectID) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ userStore    = (*data.UsersStore)(nil)
	_ messageStore = (*data.MessagesStore)(nil)
)

// Server holds the stores and real-time components shared by the HTTP, websocket and
// gRPC transports.
type Server struct {
	users         userStore
	conversations data.ConversationStore
	messages      messageStore

	auth       *auth.JWTManager
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
	images     storage.ObjectStore // nil when object storage is not configured
	db         pinger
	cache      pinger // nil when the conversation cache is disabled
	logger     *zap.Logger

	sendBuffer int
}

// serverDeps groups newServer's arguments.
type serverDeps struct {
	Users         userStore
	Conversations data.ConversationStore
	Messages      messageStore
	Auth          *auth.JWTManager
	Registry      *realtime.Registry
	Dispatcher    *realtime.Dispatcher
	Images        storage.ObjectStore
	DB            pinger
	Cache         pinger
	Logger        *zap.Logger
	SendBuffer    int
}

// newServer returns a ready-to-use Server.
func newServer(d serverDeps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.SendBuffer <= 0 {
		d.SendBuffer = 32
	}
	return &Server{
		users:         d.Users,
		conversations: d.Conversations,
		messages:      d.Messages,
		auth:          d.Auth,
		registry:      d.Registry,
		dispatcher:    d.Dispatcher,
		images:        d.Images,
		db:            d.DB,
		cache:         d.Cache,
		logger:        d.Logger,
		sendBuffer:    d.SendBuffer,
	}
}

// broadcastOnline tells every connected user who is online.
func (s *Server) broadcastOnline() {
	s.dispatcher.Broadcast(realtime.OnlineUsers(s.registry.Online()))
}
