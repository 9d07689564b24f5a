package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/cache"
	"github.com/PaulBabatuyi/socialchat/internal/config"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/db"
	"github.com/PaulBabatuyi/socialchat/internal/logging"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
	"github.com/PaulBabatuyi/socialchat/internal/realtime"
	"github.com/PaulBabatuyi/socialchat/internal/storage"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ===== STORAGE =====
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, dbClient.Close(closeCtx))
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		return err
	}

	users := data.NewUsersStore(dbClient.UsersCollection())
	messages := data.NewMessagesStore(dbClient.MessagesCollection(), dbClient.ConversationsCollection())
	var conversations data.ConversationStore = data.NewConversationsStore(dbClient.ConversationsCollection())
	var cachePinger pinger

	if cfg.RedisURL != "" {
		redisCache, redisErr := cache.NewRedis(ctx, cfg.RedisURL)
		if redisErr != nil {
			return redisErr
		}
		defer func() { err = multierr.Append(err, redisCache.Close()) }()
		conversations = data.NewCachedConversations(conversations, redisCache, cfg.ConversationCacheTTL, logger)
		cachePinger = redisCache
		logger.Info("conversation cache enabled", zap.Duration("ttl", cfg.ConversationCacheTTL))
	}

	var images storage.ObjectStore
	if cfg.StorageEnabled() {
		supabase, storageErr := storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey, nil)
		if storageErr != nil {
			return storageErr
		}
		images = supabase
	} else {
		logger.Info("object storage not configured; inline images are rejected")
	}

	// ===== AUTH & REAL-TIME =====
	var jwtMgr *auth.JWTManager
	if len(cfg.JWTKeys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWTActiveKid, cfg.JWTTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	}

	// small burst allows a couple of quick retries
	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiter.Stop()

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, logger)

	srv := newServer(serverDeps{
		Users:         users,
		Conversations: conversations,
		Messages:      messages,
		Auth:          jwtMgr,
		Registry:      registry,
		Dispatcher:    dispatcher,
		Images:        images,
		DB:            dbClient,
		Cache:         cachePinger,
		Logger:        logger,
		SendBuffer:    cfg.WSSendBuffer,
	})

	// ===== TRANSPORTS =====
	app := srv.routes(limiter, httpOptions{ReadTimeout: cfg.HTTPReadTimeout, WriteTimeout: cfg.HTTPWriteTimeout})

	var serverOpts []grpc.ServerOption
	if cfg.TLSEnabled() {
		creds, tlsErr := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if tlsErr != nil {
			return fmt.Errorf("failed to load TLS certs: %w", tlsErr)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}
	grpcServer, healthServer := srv.grpcServer(limiter, serverOpts...)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		addr := ":" + cfg.Port
		logger.Info("HTTP server listening", zap.String("addr", addr), zap.Bool("tls", cfg.TLSEnabled()))
		if cfg.TLSEnabled() {
			errCh <- app.ListenTLS(addr, cfg.TLSCert, cfg.TLSKey)
			return
		}
		errCh <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("server failed", zap.Error(err))
		}
	}

	// closing the registry ends live streams and sockets and turns away late ones, so
	// the listeners below do not wait on them
	healthServer.Shutdown()
	registry.Close()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		grpcServer.Stop()
	}

	if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		err = multierr.Append(err, shutdownErr)
	}
	dispatcher.Close()

	logger.Info("server stopped")
	return err
}

// grpcServer builds the gRPC server with the delivery and health services.
func (s *Server) grpcServer(limiter *middleware.LimiterStore, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	limited := map[string]bool{
		subscribeMethod: true,
		onlineMethod:    true,
	}

	// order matters: claims must be in the context before the limiter keys on them
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			loggingUnaryInterceptor(s.logger),
			authUnaryInterceptor(s.auth),
			middleware.RateLimitUnaryInterceptor(limiter, limited),
		),
		grpc.ChainStreamInterceptor(
			loggingStreamInterceptor(s.logger),
			authStreamInterceptor(s.auth),
			middleware.RateLimitStreamInterceptor(limiter, limited),
		),
	)

	gs := grpc.NewServer(opts...)
	gs.RegisterService(&deliveryServiceDesc, &delivery{s: s})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(deliveryServiceName, healthpb.HealthCheckResponse_SERVING)

	return gs, hs
}
