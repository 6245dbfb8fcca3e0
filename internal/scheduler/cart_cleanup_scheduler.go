package scheduler

import (
	"github.com/pharmacare/pharmacy-backend/internal/app/service"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CartCleanupScheduler periodically drops unavailable lines from every cart
type CartCleanupScheduler struct {
	cron        *cron.Cron
	cartService service.CartService
	schedule    string
}

// NewCartCleanupScheduler builds the scheduler. An empty schedule disables it.
func NewCartCleanupScheduler(cartService service.CartService, schedule string) *CartCleanupScheduler {
	return &CartCleanupScheduler{
		cron:        cron.New(),
		cartService: cartService,
		schedule:    schedule,
	}
}

// Start registers the cleanup job and starts the cron loop
func (s *CartCleanupScheduler) Start() error {
	if s.schedule == "" {
		logger.Info("Cart cleanup scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runCleanup); err != nil {
		logger.Error("Failed to add cron job for cart cleanup", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Cart cleanup scheduler started successfully", map[string]interface{}{
		"schedule": s.schedule,
	})
	return nil
}

// Stop waits for a running job to finish
func (s *CartCleanupScheduler) Stop() {
	logger.Info("Stopping cart cleanup scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Cart cleanup scheduler stopped")
}

func (s *CartCleanupScheduler) runCleanup() {
	logger.Info("Starting scheduled cart cleanup")

	removed, err := s.cartService.CleanupAllInactive()
	if err != nil {
		// partial failures still report what was removed
		logger.Error("Scheduled cart cleanup finished with errors", err, map[string]interface{}{
			"removed_lines": removed,
		})
		return
	}

	logger.Info("Scheduled cart cleanup completed", map[string]interface{}{
		"removed_lines": removed,
	})
}
