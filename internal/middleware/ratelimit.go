// Package middleware holds the fiber handlers and gRPC interceptors shared by the transports.
package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fastjson"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LimiterStore maintains per-key rate limiters and performs periodic cleanup.
type LimiterStore struct {
	mu              sync.Mutex
	limit           rate.Limit
	burst           int
	clients         map[string]*clientEntry
	cleanupInterval time.Duration
	idleAfter       time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a new store for per-key rate limiters.
// limitPerMinute controls allowed events per minute; burst is the burst capacity.
func NewLimiterStore(limitPerMinute int, burst int, cleanupInterval time.Duration) *LimiterStore {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	s := &LimiterStore{
		limit:           rate.Every(time.Minute / time.Duration(limitPerMinute)),
		burst:           burst,
		clients:         map[string]*clientEntry{},
		cleanupInterval: cleanupInterval,
		idleAfter:       10 * time.Minute,
		stopCh:          make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *LimiterStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictIdle(time.Now().Add(-s.idleAfter))
		case <-s.stopCh:
			return
		}
	}
}

func (s *LimiterStore) evictIdle(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.clients {
		if v.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// getLimiter returns or creates a limiter for key
func (s *LimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.clients[key]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.clients[key] = &clientEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// Allow checks whether an event for the given key is permitted.
func (s *LimiterStore) Allow(key string) bool {
	return s.getLimiter(key).Allow()
}

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *fiber.Ctx) string

// EmailOrIP keys by the normalized "email" field of a JSON body so one account cannot
// be brute forced from many addresses or spellings, falling back to the client IP.
func EmailOrIP(c *fiber.Ctx) string {
	if email := normalize.Email(fastjson.GetString(c.Body(), "email")); email != "" {
		return "email:" + email
	}
	return "ip:" + c.IP()
}

// RateLimit rejects requests over the store's budget with 429.
func RateLimit(store *LimiterStore, key KeyFunc) fiber.Handler {
	if key == nil {
		key = func(c *fiber.Ctx) string { return "ip:" + c.IP() }
	}
	return func(c *fiber.Ctx) error {
		if !store.Allow(key(c)) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}

// grpcKey prefers the authenticated user and falls back to the remote peer.
func grpcKey(ctx context.Context) string {
	if claims, ok := auth.FromContext(ctx); ok {
		return "user:" + claims.UserID
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return "peer:" + p.Addr.String()
	}
	return "unknown"
}

// RateLimitUnaryInterceptor applies the store to the listed unary methods.
func RateLimitUnaryInterceptor(store *LimiterStore, limitedMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limitedMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		if !store.Allow(grpcKey(ctx)) {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// RateLimitStreamInterceptor limits how often the listed streams may be opened.
func RateLimitStreamInterceptor(store *LimiterStore, limitedMethods map[string]bool) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !limitedMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		if !store.Allow(grpcKey(ss.Context())) {
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(srv, ss)
	}
}
