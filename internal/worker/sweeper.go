package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type holdExpirer interface {
	ExpireOverdueHolds(ctx context.Context) (int, error)
}

// HoldSweeper периодически истекает просроченные мягкие брони. Один проход
// при старте, дальше по тикеру.
type HoldSweeper struct {
	svc      holdExpirer
	interval time.Duration
	logger   *zerolog.Logger
}

func NewHoldSweeper(svc holdExpirer, interval time.Duration, logger *zerolog.Logger) *HoldSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HoldSweeper{svc: svc, interval: interval, logger: logger}
}

// Start blocks until ctx is done.
func (s *HoldSweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("hold sweeper started")
	defer s.logger.Info().Msg("hold sweeper stopped")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *HoldSweeper) sweep(ctx context.Context) {
	if _, err := s.svc.ExpireOverdueHolds(ctx); err != nil {
		s.logger.Error().Err(err).Msg("hold sweep failed")
	}
}
