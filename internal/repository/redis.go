package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hotelier/internal/config"
	"hotelier/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisAvailabilityCache хранит снимки доступности в Redis. Инвалидация
// по типу номера реализована через счетчик поколений: ключи старого
// поколения никто больше не читает, их добивает TTL.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisAvailabilityCache) generation(ctx context.Context, roomTypeID int64) (int64, error) {
	val, err := r.client.Get(ctx, fmt.Sprintf("availability:gen:%d", roomTypeID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get availability generation: %w", err)
	}
	return val, nil
}

func snapshotKey(roomTypeID, gen int64, checkIn, checkOut time.Time) string {
	return fmt.Sprintf("availability:%d:%d:%s:%s",
		roomTypeID, gen, checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02"))
}

func (r *RedisAvailabilityCache) Get(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time) (*models.Availability, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	gen, err := r.generation(ctx, roomTypeID)
	if err != nil {
		return nil, err
	}

	val, err := r.client.Get(ctx, snapshotKey(roomTypeID, gen, checkIn, checkOut)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability from redis: %w", err)
	}

	var snapshot models.Availability
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *RedisAvailabilityCache) Set(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, snapshot *models.Availability) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	gen, err := r.generation(ctx, roomTypeID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal availability snapshot: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKey(roomTypeID, gen, checkIn, checkOut), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set availability in redis: %w", err)
	}
	return nil
}

func (r *RedisAvailabilityCache) Invalidate(ctx context.Context, roomTypeID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Incr(ctx, fmt.Sprintf("availability:gen:%d", roomTypeID)).Err(); err != nil {
		return fmt.Errorf("failed to bump availability generation: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
