// Package leader runs Kubernetes Lease-based leader election so that only
// one replica owns the auction state and its countdown.
package leader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/ReaperOAK/player-auction/internal/config"
)

// ErrNotLeader is reported by Status.Check on replicas that do not hold the lease.
var ErrNotLeader = errors.New("replica is not the auction leader")

// identity returns a unique identity for this instance.
// It uses the POD_NAME env var if set, otherwise the hostname.
func identity() string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// ClientFactory creates a Kubernetes clientset.
// Extracted as a variable for testing.
var ClientFactory = func() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("building in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return client, nil
}

// Status records the outcome of the election for readiness checks.
type Status struct {
	mu      sync.RWMutex
	self    string
	leader  string
	leading bool
}

// Leading reports whether this replica holds the lease.
func (s *Status) Leading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leading
}

// Leader returns the identity of the current leader, if known.
func (s *Status) Leader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leader
}

// Check fails unless this replica is leading. Followers report not ready
// so that traffic only reaches the replica serving the auction.
func (s *Status) Check(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.leading {
		if s.leader != "" {
			return fmt.Errorf("%w: leader is %s", ErrNotLeader, s.leader)
		}
		return ErrNotLeader
	}
	return nil
}

func (s *Status) set(leading bool, leader string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leading = leading
	if leader != "" {
		s.leader = leader
	}
}

// Run starts leader election and blocks until ctx is done. lead is invoked
// when this instance becomes the leader and must return once its context
// is cancelled. status, if non-nil, tracks the election.
func Run(ctx context.Context, cfg config.LeaderElectionConfig, logger *slog.Logger, status *Status, lead func(ctx context.Context)) error {
	if cfg.LeaseName == "" || cfg.LeaseNamespace == "" {
		return errors.New("leader election needs a lease name and namespace")
	}
	if status == nil {
		status = &Status{}
	}
	id := identity()
	status.mu.Lock()
	status.self = id
	status.mu.Unlock()

	logger.Info("starting leader election",
		slog.String("identity", id),
		slog.String("lease", cfg.LeaseName),
		slog.String("namespace", cfg.LeaseNamespace),
	)

	client, err := ClientFactory()
	if err != nil {
		return fmt.Errorf("leader election client: %w", err)
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      cfg.LeaseName,
			Namespace: cfg.LeaseNamespace,
		},
		Client: client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: id,
		},
	}

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   cfg.LeaseDuration,
		RenewDeadline:   cfg.RenewDeadline,
		RetryPeriod:     cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Name:            cfg.LeaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				logger.Info("acquired leadership", slog.String("identity", id))
				status.set(true, id)
				lead(ctx)
			},
			OnStoppedLeading: func() {
				logger.Info("lost leadership", slog.String("identity", id))
				status.set(false, "")
			},
			OnNewLeader: func(newID string) {
				status.set(newID == id, newID)
				if newID == id {
					return
				}
				logger.Info("new leader elected", slog.String("leader", newID))
			},
		},
	})
	if err != nil {
		return fmt.Errorf("configuring leader election: %w", err)
	}

	// Run returns when leadership is lost; contend again until ctx ends.
	for ctx.Err() == nil {
		elector.Run(ctx)
	}
	return nil
}
