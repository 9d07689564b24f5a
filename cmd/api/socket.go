package main

import (
	"context"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/logging"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
	"github.com/PaulBabatuyi/socialchat/internal/realtime"

	"github.com/gofiber/contrib/websocket"
	"github.com/valyala/fastjson"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// inbound frame types
const frameMarkMessagesAsSeen = "markMessagesAsSeen"

// serveSocket registers the caller's websocket as their live connection, relays pushed
// events to it and handles inbound frames until either side closes.
func (s *Server) serveSocket(ws *websocket.Conn) {
	claims, ok := ws.Locals(middleware.ClaimsLocal).(*auth.Claims)
	if !ok {
		_ = ws.Close()
		return
	}
	userID, err := claims.ObjectID()
	if err != nil {
		_ = ws.Close()
		return
	}

	conn, err := realtime.NewWSConn(ws, s.sendBuffer)
	if err != nil {
		s.logger.Error("create websocket connection", zap.Error(err))
		_ = ws.Close()
		return
	}

	ctx := logging.NewContextWithID(auth.NewContext(context.Background(), claims), conn.ID())
	log := logging.WithContext(ctx, s.logger).With(zap.String("user", claims.UserID))

	s.registry.Register(claims.UserID, conn)
	log.Info("websocket connected")
	s.broadcastOnline()

	go conn.WriteLoop()
	defer func() {
		conn.Close()
		<-conn.Stopped()
		if s.registry.Release(claims.UserID, conn) {
			s.broadcastOnline()
		}
		log.Info("websocket disconnected")
	}()

	var parser fastjson.Parser
	err = conn.ReadLoop(func(payload []byte) {
		s.handleFrame(ctx, userID, conn, &parser, payload)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug("websocket read ended", zap.Error(err))
	}
}

// handleFrame runs one inbound client frame. Failures are reported back on conn as
// error events.
func (s *Server) handleFrame(ctx context.Context, userID bson.ObjectID, conn realtime.Conn, parser *fastjson.Parser, payload []byte) {
	v, err := parser.ParseBytes(payload)
	if err != nil {
		_ = conn.Push(realtime.Error("malformed JSON"))
		return
	}

	switch string(v.GetStringBytes("type")) {
	case frameMarkMessagesAsSeen:
		conversationID, err := data.ParseID(string(v.GetStringBytes("conversationId")))
		if err == nil {
			_, err = s.markConversationSeen(ctx, userID, conversationID)
		}
		if err != nil {
			code, msg := statusFor(err)
			if code >= 500 {
				logging.WithContext(ctx, s.logger).Error("websocket frame failed", zap.Error(err))
			}
			_ = conn.Push(realtime.Error(msg))
		}
	default:
		_ = conn.Push(realtime.Error("unsupported message type"))
	}
}
