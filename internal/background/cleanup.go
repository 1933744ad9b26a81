package background

import (
	"context"
	"log/slog"
	"time"
)

// ChallengePurger deletes login challenges that can no longer be redeemed.
type ChallengePurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically purges dead login challenges. Expiry is
// enforced at read time, so this is housekeeping, not correctness.
type CleanupManager struct {
	purger   ChallengePurger
	logger   *slog.Logger
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewCleanupManager(purger ChallengePurger, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		purger:   purger,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the cleanup loop until Stop is called.
func (cm *CleanupManager) Start() {
	go func() {
		defer close(cm.done)

		ticker := time.NewTicker(cm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.run()
			case <-cm.stop:
				return
			}
		}
	}()

	cm.logger.Info("challenge cleanup started", "interval", cm.interval.String())
}

// Stop halts the loop and waits for any in-flight run to finish.
func (cm *CleanupManager) Stop() {
	close(cm.stop)
	<-cm.done
	cm.logger.Info("challenge cleanup stopped")
}

func (cm *CleanupManager) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := cm.purger.DeleteExpired(ctx)
	if err != nil {
		cm.logger.Error("challenge cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		cm.logger.Info("purged dead login challenges", "count", deleted)
	}
}
