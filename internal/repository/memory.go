package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hotelier/internal/models"
)

type memoryEntry struct {
	snapshot  *models.Availability
	expiresAt time.Time
}

// MemoryAvailabilityCache — кэш доступности в памяти процесса. Служит
// запасным вариантом при недоступном Redis и основным в тестах.
type MemoryAvailabilityCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

func NewMemoryAvailabilityCache(ttl time.Duration) *MemoryAvailabilityCache {
	return &MemoryAvailabilityCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func memoryKey(roomTypeID int64, checkIn, checkOut time.Time) string {
	return fmt.Sprintf("%d:%s:%s", roomTypeID, checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02"))
}

func memoryPrefix(roomTypeID int64) string {
	return fmt.Sprintf("%d:", roomTypeID)
}

func (r *MemoryAvailabilityCache) Get(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time) (*models.Availability, error) {
	r.mu.RLock()
	entry, ok := r.entries[memoryKey(roomTypeID, checkIn, checkOut)]
	r.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.snapshot, nil
}

func (r *MemoryAvailabilityCache) Set(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, snapshot *models.Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[memoryKey(roomTypeID, checkIn, checkOut)] = memoryEntry{
		snapshot:  snapshot,
		expiresAt: time.Now().Add(r.ttl),
	}
	return nil
}

func (r *MemoryAvailabilityCache) Invalidate(ctx context.Context, roomTypeID int64) error {
	prefix := memoryPrefix(roomTypeID)

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(r.entries, key)
		}
	}
	return nil
}
