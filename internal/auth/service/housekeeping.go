package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/certvault/certauth/internal/auth/store"
)

// cleanupTimeout bounds a single pass so a stuck database cannot pin the
// worker past shutdown.
const cleanupTimeout = 30 * time.Second

// HousekeepingService periodically ends sessions whose refresh token has
// expired, so stale fingerprints do not linger in the users table.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHousekeepingService creates a worker that runs every interval
// (one hour when interval is not positive).
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
	}
}

// Start runs one pass immediately and then one per interval until Stop.
// Starting a running worker is a no-op.
func (s *HousekeepingService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop cancels the worker and waits for an in-flight pass to return.
// It is safe to call on a worker that was never started.
func (s *HousekeepingService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		s.Cleanup(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Cleanup runs one pass and returns the number of sessions ended.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	n, err := s.Store.Users().ClearExpiredRefreshTokens(ctx, s.Now.now())
	if err != nil {
		if ctx.Err() == nil {
			s.Logger.Error("failed to clear expired refresh tokens", "error", err)
		}
		return 0
	}
	if n > 0 {
		s.Logger.Info("expired sessions cleared", "count", n)
	}
	return n
}
