package repository

import (
	"context"
	"sync/atomic"
	"time"

	"hotelier/internal/domain"
	"hotelier/internal/models"

	"github.com/rs/zerolog"
)

// FailoverAvailabilityCache прикрывает основной кэш резервным: после сбоя
// основного переключается на резерв и раз в минуту пробует вернуться.
type FailoverAvailabilityCache struct {
	primary   domain.AvailabilityCache
	fallback  domain.AvailabilityCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverAvailabilityCache(primary, fallback domain.AvailabilityCache, logger *zerolog.Logger) *FailoverAvailabilityCache {
	return &FailoverAvailabilityCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverAvailabilityCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary availability cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverAvailabilityCache) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverAvailabilityCache) Get(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time) (*models.Availability, error) {
	if !r.isDown.Load() {
		snapshot, err := r.primary.Get(ctx, roomTypeID, checkIn, checkOut)
		if err == nil {
			return snapshot, nil
		}
		r.markDown(err)
	}

	// Периодически пробуем вернуться на основной.
	if r.isDown.Load() && r.shouldRetryPrimary() {
		snapshot, err := r.primary.Get(ctx, roomTypeID, checkIn, checkOut)
		if err == nil {
			r.isDown.Store(false)
			return snapshot, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Get(ctx, roomTypeID, checkIn, checkOut)
}

func (r *FailoverAvailabilityCache) Set(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, snapshot *models.Availability) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, roomTypeID, checkIn, checkOut, snapshot)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, roomTypeID, checkIn, checkOut, snapshot)
}

func (r *FailoverAvailabilityCache) Invalidate(ctx context.Context, roomTypeID int64) error {
	// Инвалидация идет в оба кэша: резерв мог накопить снимки, пока
	// основной был недоступен.
	var primaryErr error
	if !r.isDown.Load() {
		primaryErr = r.primary.Invalidate(ctx, roomTypeID)
		if primaryErr != nil {
			r.markDown(primaryErr)
		}
	}

	if err := r.fallback.Invalidate(ctx, roomTypeID); err != nil {
		return err
	}
	if r.isDown.Load() {
		return nil
	}
	return primaryErr
}
