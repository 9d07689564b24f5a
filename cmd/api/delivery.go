package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/realtime"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	deliveryServiceName = "social.v1.DeliveryService"
	subscribeMethod     = "/" + deliveryServiceName + "/Subscribe"
	onlineMethod        = "/" + deliveryServiceName + "/Online"
)

// deliveryServer streams real-time events to gRPC clients. Requests are
// google.protobuf.Empty and events arrive as google.protobuf.Struct {type, payload}.
type deliveryServer interface {
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
	Online(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var deliveryServiceDesc = grpc.ServiceDesc{
	ServiceName: deliveryServiceName,
	HandlerType: (*deliveryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Online", Handler: onlineHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "social/v1/delivery.proto",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(deliveryServer).Subscribe(in, stream)
}

func onlineHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(deliveryServer).Online(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: onlineMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(deliveryServer).Online(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// delivery implements deliveryServer on top of the shared registry.
type delivery struct {
	s *Server
}

// Subscribe registers the stream as the caller's live connection and forwards events
// until the client goes away or the connection is replaced or overflows.
func (d *delivery) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	claims, ok := auth.FromContext(stream.Context())
	if !ok {
		return status.Error(codes.Unauthenticated, "missing auth claims")
	}

	outbox, err := realtime.NewOutbox(d.s.sendBuffer)
	if err != nil {
		return status.Error(codes.Internal, "could not open subscription")
	}

	d.s.registry.Register(claims.UserID, outbox)
	d.s.broadcastOnline()
	defer func() {
		outbox.Close()
		if d.s.registry.Release(claims.UserID, outbox) {
			d.s.broadcastOnline()
		}
	}()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-outbox.Done():
			return status.Error(codes.Unavailable, "subscription closed")
		case e := <-outbox.Events():
			msg, err := eventStruct(e)
			if err != nil {
				d.s.logger.Warn("encode event", zap.String("type", e.Type), zap.Error(err))
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// Online returns {"users": [...]} with the ids currently connected.
func (d *delivery) Online(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	online := d.s.registry.Online()
	users := make([]interface{}, len(online))
	for i, id := range online {
		users[i] = id
	}
	return structpb.NewStruct(map[string]interface{}{"users": users})
}

// eventStruct converts an event through its JSON form so clients see the same shape
// as on the websocket.
func eventStruct(e realtime.Event) (*structpb.Struct, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("convert event: %w", err)
	}
	return out, nil
}
