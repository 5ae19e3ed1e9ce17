package etcd

import (
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdAPI is the subset of *clientv3.Client used for registration.
type etcdAPI interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Close() error
}

// ServiceDiscovery registers service instances under /services/<name>/<addr>
// with a lease that is kept alive until the instance deregisters.
type ServiceDiscovery struct {
	cli etcdAPI
	log *logger.Logger
}

// Config is what NewServiceDiscovery needs to reach etcd.
type Config struct {
	Endpoints []string
	Username  string
	Password  string
}

// NewServiceDiscovery creates a new ServiceDiscovery.
func NewServiceDiscovery(cfg Config, log *logger.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &ServiceDiscovery{cli: cli, log: log}, nil
}

func servicePrefix(serviceName string) string {
	return "/services/" + serviceName + "/"
}

// Register puts addr under the service prefix and keeps the lease alive in the
// background. The returned function stops the keepalive and revokes the lease.
func (s *ServiceDiscovery) Register(ctx context.Context, serviceName, addr string, ttl int64) (func(context.Context) error, error) {
	leaseResp, err := s.cli.Grant(ctx, ttl)
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}

	key := servicePrefix(serviceName) + addr
	if _, err := s.cli.Put(ctx, key, addr, clientv3.WithLease(leaseResp.ID)); err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}

	keepCtx, cancel := context.WithCancel(context.Background())
	keepAliveCh, err := s.cli.KeepAlive(keepCtx, leaseResp.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("keep lease alive: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range keepAliveCh {
		}
		if keepCtx.Err() == nil {
			// Lease expired or was revoked from outside.
			s.log.WithField("key", key).Warn("etcd lease lost")
		}
	}()
	s.log.WithField("key", key).Info("registered service instance")

	var once sync.Once
	var revokeErr error
	deregister := func(ctx context.Context) error {
		once.Do(func() {
			cancel()
			<-done
			if _, err := s.cli.Revoke(ctx, leaseResp.ID); err != nil {
				revokeErr = fmt.Errorf("revoke lease: %w", err)
			}
		})
		return revokeErr
	}
	return deregister, nil
}

// Discover returns the addresses currently registered for serviceName.
func (s *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]string, error) {
	resp, err := s.cli.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		addrs = append(addrs, string(kv.Value))
	}
	return addrs, nil
}

// Close closes the etcd client.
func (s *ServiceDiscovery) Close() error {
	return s.cli.Close()
}
