package grpc

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startBufServer(t *testing.T, srv *Server) healthpb.HealthClient {
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestNewServer_DefaultAddress(t *testing.T) {
	srv, err := NewServer(&config.AppConfig{}, WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, ":9090", srv.Addr())

	srv, err = NewServer(&config.AppConfig{}, WithAddress(":7000"), WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, ":7000", srv.Addr())
}

func TestNewServer_RejectsBadMiddlewareConfig(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Middleware.RateLimiter = config.RateLimiterConfig{Enabled: true, Algorithm: "leakyBucket"}
	_, err := NewServer(cfg, WithLogger(logger.Discard()))
	assert.Error(t, err)
}

func TestServer_HealthStatus(t *testing.T) {
	srv, err := NewServer(&config.AppConfig{}, WithLogger(logger.Discard()))
	require.NoError(t, err)
	client := startBufServer(t, srv)
	ctx := context.Background()

	srv.SetServing(true, "archive")
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "archive"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	srv.SetServing(false, "archive")
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
