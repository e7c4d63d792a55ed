package alert

import (
	"context"
	"time"

	"github.com/firewatch-dev/firewatch/internal/logger"
)

// Run scans every interval until ctx ends. Each scan gets its own timeout
// when timeout > 0. A failed scan is logged and the loop continues.
func (s *Scanner) Run(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("periodic scans enabled", logger.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx, timeout)
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if _, err := s.Scan(ctx); err != nil {
		s.log.Error("scheduled scan failed", logger.Error(err))
	}
}
