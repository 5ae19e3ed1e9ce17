package grpc

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/grpcinterceptor"
	ahttp "AskArchive/backend/go/pkg/http"
	"AskArchive/backend/go/pkg/logger"
	"AskArchive/backend/go/pkg/ratelimiter"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const maxLimiterKeys = 10000

// Server 是一个自定义的 gRPC 服务器，封装了标准的 grpc.Server，
// 内置健康检查服务和限流、熔断中间件。
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	address    string
	log        *logger.Logger
}

// ServerOption 定义了用于配置 Server 的函数。
type ServerOption func(*Server)

// WithAddress 设置服务器监听的地址。
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.address = addr
	}
}

// WithLogger 设置服务器使用的日志记录器。
func WithLogger(log *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer 根据提供的 AppConfig 和选项创建并配置一个新的 Server 实例。
// 它会自动应用配置中启用的限流和熔断拦截器，并注册 grpc.health.v1 服务。
func NewServer(cfg *config.AppConfig, opts ...ServerOption) (*Server, error) {
	srv := &Server{
		address: cfg.Server.GRPCAddr,
		log:     logger.New(cfg.App.Name, "", ""),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.address == "" {
		srv.address = ":9090"
	}

	interceptors := []grpc.UnaryServerInterceptor{grpcinterceptor.LoggingUnaryInterceptor(srv.log)}

	// 如果启用了限流器，则添加按调用方限流的拦截器。
	if cfg.Middleware.RateLimiter.Enabled {
		factory, err := ratelimiter.FactoryFromConfig(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		keyed, err := ratelimiter.NewKeyed(factory, maxLimiterKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.Info(fmt.Sprintf("Enabling gRPC Rate Limiter middleware with algorithm: %s", cfg.Middleware.RateLimiter.Algorithm))
		interceptors = append(interceptors, grpcinterceptor.RateLimitUnaryInterceptor(keyed))
	}

	// 如果启用了熔断器，则添加熔断拦截器。
	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := ahttp.NewCircuitBreaker(cfg.Middleware.CircuitBreaker, srv.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("Enabling gRPC Circuit Breaker middleware.")
		interceptors = append(interceptors, grpcinterceptor.CircuitBreakUnaryInterceptor(breaker))
	}

	srv.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	srv.health = health.NewServer()
	healthpb.RegisterHealthServer(srv.grpcServer, srv.health)
	return srv, nil
}

// SetServing 更新整体及指定服务的健康状态。
func (s *Server) SetServing(serving bool, services ...string) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	for _, name := range services {
		s.health.SetServingStatus(name, st)
	}
}

// RegisterService 暴露底层的 gRPC RegisterService 方法，用于注册服务实现。
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.grpcServer.RegisterService(desc, impl)
}

// Addr 返回配置的监听地址。
func (s *Server) Addr() string {
	return s.address
}

// ListenAndServe 开始监听并提供 gRPC 服务。
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(lis)
}

// Serve 在给定的 listener 上提供 gRPC 服务。
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(fmt.Sprintf("Starting gRPC server on %s", lis.Addr()))
	if err := s.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// GracefulStop 先把健康状态置为 NOT_SERVING，再优雅地停止 gRPC 服务器。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
