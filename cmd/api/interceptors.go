package main

import (
	"context"
	"strings"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/logging"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicMethod reports whether a method may be called without a token.
func publicMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/")
}

// authenticate verifies the bearer token in the incoming metadata.
func authenticate(ctx context.Context, verifier middleware.TokenVerifier) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Errorf(codes.Unauthenticated, "missing authorization header")
	}

	token := middleware.BearerToken(authHeaders[0])
	if token == "" {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token")
	}

	claims, err := verifier.VerifyToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
	}
	return auth.NewContext(ctx, claims), nil
}

// authUnaryInterceptor enforces JWT authentication on unary methods.
func authUnaryInterceptor(verifier middleware.TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, verifier)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(verifier middleware.TokenVerifier) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if publicMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), verifier)
		if err != nil {
			return err
		}
		return handler(srv, wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// loggingUnaryInterceptor tags the call with a request id and logs its outcome.
func loggingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := xid.New().String()
		start := time.Now()
		resp, err := handler(logging.NewContextWithID(ctx, id), req)
		logger.Info("grpc call",
			zap.String("request_id", id),
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

// loggingStreamInterceptor logs when a stream ends and how long it was open.
func loggingStreamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		id := xid.New().String()
		start := time.Now()
		err := handler(srv, wrappedStream{ServerStream: ss, ctx: logging.NewContextWithID(ss.Context(), id)})
		logger.Info("grpc stream",
			zap.String("request_id", id),
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// wrappedStream overrides Context() on a grpc.ServerStream.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w wrappedStream) Context() context.Context { return w.ctx }
