package main

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
	"github.com/PaulBabatuyi/socialchat/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// memUsers is an in-memory userStore.
type memUsers struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*data.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[bson.ObjectID]*data.User{}} }

func (m *memUsers) CreateUser(_ context.Context, name, username, email, hashedPassword string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return nil, fmt.Errorf("%w: email or username", data.ErrDuplicate)
		}
	}
	u := &data.User{ID: bson.NewObjectID(), Name: name, Username: username, Email: email, Password: hashedPassword}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: user", data.ErrNotFound)
}

func (m *memUsers) GetUserByID(_ context.Context, id bson.ObjectID) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: user %s", data.ErrNotFound, id.Hex())
}

func (m *memUsers) UsersExist(_ context.Context, ids []bson.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.users[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// memConversations is an in-memory data.ConversationStore.
type memConversations struct {
	mu    sync.Mutex
	byID  map[bson.ObjectID]*data.Conversation
	byKey map[string]*data.Conversation
}

func newMemConversations() *memConversations {
	return &memConversations{byID: map[bson.ObjectID]*data.Conversation{}, byKey: map[string]*data.Conversation{}}
}

func (m *memConversations) CreateConversation(_ context.Context, ids []bson.ObjectID) (*data.Conversation, error) {
	set, key, err := data.ParticipantSet(ids)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.byKey[key]; ok {
		return conv, nil
	}
	now := time.Now().UTC()
	conv := &data.Conversation{ID: bson.NewObjectID(), Participants: set, ParticipantsKey: key, CreatedAt: now, UpdatedAt: now}
	m.byID[conv.ID] = conv
	m.byKey[key] = conv
	return conv, nil
}

func (m *memConversations) FindConversation(_ context.Context, ids []bson.ObjectID) (*data.Conversation, error) {
	_, key, err := data.ParticipantSet(ids)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byKey[key], nil
}

func (m *memConversations) GetConversation(_ context.Context, id bson.ObjectID) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.byID[id]; ok {
		return conv, nil
	}
	return nil, fmt.Errorf("%w: conversation %s", data.ErrNotFound, id.Hex())
}

func (m *memConversations) ListConversations(_ context.Context, userID bson.ObjectID) ([]*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	convs := []*data.Conversation{}
	for _, c := range m.byID {
		if c.HasParticipant(userID) {
			convs = append(convs, c)
		}
	}
	return convs, nil
}

// memMessages is an in-memory messageStore.
type memMessages struct {
	mu         sync.Mutex
	messages   []*data.Message
	failCreate error
}

func (m *memMessages) CreateMessage(_ context.Context, conversationID, senderID bson.ObjectID, text, img string) (*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	now := time.Now().UTC()
	msg := &data.Message{ID: bson.NewObjectID(), ConversationID: conversationID, Sender: senderID, Text: text, Img: img, CreatedAt: now, UpdatedAt: now}
	m.messages = append(m.messages, msg)
	cp := *msg
	return &cp, nil
}

func (m *memMessages) GetMessage(_ context.Context, id bson.ObjectID) (*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: message %s", data.ErrNotFound, id.Hex())
}

func (m *memMessages) ListMessages(_ context.Context, conversationID bson.ObjectID) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*data.Message{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memMessages) MarkSeen(_ context.Context, id bson.ObjectID) (*data.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			changed := !msg.Seen
			msg.Seen = true
			cp := *msg
			return &cp, changed, nil
		}
	}
	return nil, false, fmt.Errorf("%w: message %s", data.ErrNotFound, id.Hex())
}

func (m *memMessages) MarkConversationSeen(_ context.Context, conversationID, readerID bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.Sender != readerID && !msg.Seen {
			msg.Seen = true
			n++
		}
	}
	return n, nil
}

// memImages is an in-memory storage.ObjectStore.
type memImages struct {
	mu         sync.Mutex
	uploads    map[string][]byte
	failDelete error
}

func (m *memImages) Upload(_ context.Context, folder string, content []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	u := fmt.Sprintf("https://cdn.test/%s/%d.%s", folder, len(m.uploads), strings.TrimPrefix(contentType, "image/"))
	m.uploads[u] = content
	return u, nil
}

func (m *memImages) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.uploads, url)
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

// testEnv is a Server wired to in-memory stores with three registered users: alice and
// bob share a conversation, carol is an outsider.
type testEnv struct {
	t *testing.T

	srv           *Server
	app           *fiber.App
	users         *memUsers
	conversations *memConversations
	messages      *memMessages
	images        *memImages
	jwt           *auth.JWTManager

	alice, bob, carol *data.User
	conv              *data.Conversation
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		t:             t,
		users:         newMemUsers(),
		conversations: newMemConversations(),
		messages:      &memMessages{},
		images:        &memImages{},
		jwt:           auth.NewJWTManager("test-secret", time.Hour),
	}

	registry := realtime.NewRegistry()
	env.srv = newServer(serverDeps{
		Users:         env.users,
		Conversations: env.conversations,
		Messages:      env.messages,
		Auth:          env.jwt,
		Registry:      registry,
		Dispatcher:    realtime.NewDispatcher(registry, zap.NewNop()),
		Images:        env.images,
		DB:            fakePinger{},
		Logger:        zap.NewNop(),
		SendBuffer:    8,
	})

	limiter := middleware.NewLimiterStore(6000, 100, time.Minute)
	t.Cleanup(limiter.Stop)
	env.app = env.srv.routes(limiter, httpOptions{})

	env.alice = env.mustUser("alice")
	env.bob = env.mustUser("bob")
	env.carol = env.mustUser("carol")

	conv, err := env.conversations.CreateConversation(context.Background(), []bson.ObjectID{env.alice.ID, env.bob.ID})
	require.NoError(t, err)
	env.conv = conv
	return env
}

func (e *testEnv) mustUser(name string) *data.User {
	e.t.Helper()
	hashed, err := auth.HashPassword("password-" + name)
	require.NoError(e.t, err)
	u, err := e.users.CreateUser(context.Background(), name, name, name+"@example.com", hashed)
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) token(u *data.User) string {
	e.t.Helper()
	token, _, err := e.jwt.GenerateToken(u.ID, u.Email)
	require.NoError(e.t, err)
	return token
}

// connect registers an outbox as u's live connection.
func (e *testEnv) connect(u *data.User) *realtime.Outbox {
	e.t.Helper()
	o, err := realtime.NewOutbox(16)
	require.NoError(e.t, err)
	e.srv.registry.Register(u.ID.Hex(), o)
	return o
}

// settle waits for every dispatched push to land and stops further dispatching.
func (e *testEnv) settle() {
	e.srv.dispatcher.Close()
}

func (e *testEnv) do(method, path string, as *data.User, body string) (int, string) {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(as))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, buf.String()
}

// drain returns the events queued on o without blocking.
func drain(o *realtime.Outbox) []realtime.Event {
	var events []realtime.Event
	for {
		select {
		case e := <-o.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}
