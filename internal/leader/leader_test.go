package leader

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/ReaperOAK/player-auction/internal/config"
)

func TestIdentity_FromPodName(t *testing.T) {
	t.Setenv("POD_NAME", "auctiond-abc123")
	if got := identity(); got != "auctiond-abc123" {
		t.Errorf("identity() = %q, want %q", got, "auctiond-abc123")
	}
}

func TestIdentity_Hostname(t *testing.T) {
	t.Setenv("POD_NAME", "")
	host, err := os.Hostname()
	if err != nil {
		t.Skip("cannot get hostname")
	}
	if got := identity(); got != host {
		t.Errorf("identity() = %q, want %q", got, host)
	}
}

func TestStatus_Check(t *testing.T) {
	var s Status
	if err := s.Check(context.Background()); !errors.Is(err, ErrNotLeader) {
		t.Errorf("initial Check() = %v, want ErrNotLeader", err)
	}
	s.set(false, "auctiond-other")
	if err := s.Check(context.Background()); !errors.Is(err, ErrNotLeader) || s.Leader() != "auctiond-other" {
		t.Errorf("follower Check() = %v, leader %q", err, s.Leader())
	}
	s.set(true, "auctiond-self")
	if err := s.Check(context.Background()); err != nil || !s.Leading() {
		t.Errorf("leader Check() = %v", err)
	}
}

func TestRun_RequiresLease(t *testing.T) {
	err := Run(context.Background(), config.LeaderElectionConfig{}, slog.Default(), nil, func(context.Context) {})
	if err == nil {
		t.Fatal("expected error without lease name")
	}
}

func TestRun_AcquiresLeaseOnFakeCluster(t *testing.T) {
	t.Setenv("POD_NAME", "auctiond-0")
	orig := ClientFactory
	ClientFactory = func() (kubernetes.Interface, error) { return fake.NewSimpleClientset(), nil }
	t.Cleanup(func() { ClientFactory = orig })

	cfg := config.LeaderElectionConfig{
		Enabled:        true,
		LeaseName:      "auctiond-test",
		LeaseNamespace: "default",
		LeaseDuration:  2 * time.Second,
		RenewDeadline:  1 * time.Second,
		RetryPeriod:    100 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var status Status
	acquired := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg, slog.Default(), &status, func(ctx context.Context) {
			close(acquired)
			<-ctx.Done()
		})
	}()

	select {
	case <-acquired:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for leadership")
	}
	if !status.Leading() || status.Leader() != "auctiond-0" {
		t.Errorf("status leading=%v leader=%q", status.Leading(), status.Leader())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
}
