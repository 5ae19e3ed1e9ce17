package grpcinterceptor

import (
	"AskArchive/backend/go/pkg/circuitbreaker"
	"AskArchive/backend/go/pkg/logger"
	"AskArchive/backend/go/pkg/ratelimiter"
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// PeerKey 返回调用方的主机地址，无法确定时返回 "unknown"。
func PeerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

// RateLimitUnaryInterceptor 返回一个 gRPC 一元拦截器，按调用方地址限流。
func RateLimitUnaryInterceptor(limiter *ratelimiter.Keyed) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limiter.Allow(PeerKey(ctx)) {
			// 当请求被限流时，返回 gRPC 标准的 ResourceExhausted 错误码。
			return nil, status.Errorf(codes.ResourceExhausted, "request rejected due to rate limiting")
		}
		return handler(ctx, req)
	}
}

// CircuitBreakUnaryInterceptor 返回一个 gRPC 一元拦截器，用于熔断。
func CircuitBreakUnaryInterceptor(breaker circuitbreaker.CircuitBreaker) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := breaker.Execute(func() (interface{}, error) {
			return handler(ctx, req)
		})
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				return nil, status.Errorf(codes.Unavailable, "service unavailable: circuit breaker is open")
			}
			return nil, err
		}
		return resp, nil
	}
}

// LoggingUnaryInterceptor 为每次调用记录方法、状态码和耗时。
func LoggingUnaryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.WithPayload(map[string]interface{}{
			"method":     info.FullMethod,
			"peer":       PeerKey(ctx),
			"code":       status.Code(err).String(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("grpc call")
		return resp, err
	}
}
