package grpcinterceptor

import (
	"AskArchive/backend/go/pkg/circuitbreaker"
	"AskArchive/backend/go/pkg/logger"
	"AskArchive/backend/go/pkg/ratelimiter"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func peerCtx(addr string) context.Context {
	tcp, _ := net.ResolveTCPAddr("tcp", addr)
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
}

func okHandler(context.Context, interface{}) (interface{}, error) { return "ok", nil }

func TestPeerKey(t *testing.T) {
	assert.Equal(t, "10.0.0.1", PeerKey(peerCtx("10.0.0.1:5555")))
	assert.Equal(t, "unknown", PeerKey(context.Background()))
}

func TestRateLimitUnaryInterceptor_PerPeer(t *testing.T) {
	keyed, err := ratelimiter.NewKeyed(func() ratelimiter.RateLimiter {
		return ratelimiter.NewSlidingWindowLog(1, time.Minute)
	}, 10)
	require.NoError(t, err)
	ic := RateLimitUnaryInterceptor(keyed)

	_, err = ic(peerCtx("10.0.0.1:1"), nil, info, okHandler)
	require.NoError(t, err)
	_, err = ic(peerCtx("10.0.0.1:2"), nil, info, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = ic(peerCtx("10.0.0.2:1"), nil, info, okHandler)
	assert.NoError(t, err)
}

func TestCircuitBreakUnaryInterceptor(t *testing.T) {
	ic := CircuitBreakUnaryInterceptor(circuitbreaker.New(1, 1, time.Minute))
	failing := func(context.Context, interface{}) (interface{}, error) { return nil, errors.New("boom") }

	_, err := ic(context.Background(), nil, info, failing)
	assert.EqualError(t, err, "boom")

	_, err = ic(context.Background(), nil, info, okHandler)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestLoggingUnaryInterceptor_PassesThrough(t *testing.T) {
	resp, err := LoggingUnaryInterceptor(logger.Discard())(context.Background(), nil, info, okHandler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
