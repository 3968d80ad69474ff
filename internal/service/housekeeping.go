package service

import (
	"context"
	"time"

	"github.com/nammaooru/civic-reports/internal/repo/postgres"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

// Housekeeper sweeps expired OTP challenges out of storage. An expired
// challenge can never verify, so deletion only reclaims space; correctness
// does not depend on when the sweep runs.
type Housekeeper struct {
	otpRepo  postgres.OtpRepository
	interval time.Duration
}

func NewHousekeeper(otpRepo postgres.OtpRepository, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Housekeeper{otpRepo: otpRepo, interval: interval}
}

// Run blocks until ctx is canceled, sweeping once at startup and then on
// every interval.
func (h *Housekeeper) Run(ctx context.Context) error {
	logger.Info("Housekeeper started", "interval", h.interval)

	h.sweep(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep(ctx)
		case <-ctx.Done():
			logger.Info("Housekeeper stopped")
			return ctx.Err()
		}
	}
}

func (h *Housekeeper) sweep(ctx context.Context) {
	n, err := h.otpRepo.DeleteExpired(ctx)
	if err != nil {
		logger.Error("Failed to delete expired challenges", "error", err)
		return
	}
	if n > 0 {
		logger.Info("Deleted expired challenges", "count", n)
	}
}
