package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/limpabem/promotion-service/internal/domain"
	"github.com/limpabem/promotion-service/internal/repository"
)

const activeKey = "promotions:active"

// PromotionCache is a read-through Redis cache in front of a
// PromotionRepository. Only the active-promotion snapshot is cached; usage
// reads and writes always hit the database, and any promotion write drops
// the cached snapshot.
//
// The TTL should stay short: the snapshot ignores the asOf instant within
// its lifetime, so a promotion expiring mid-TTL lingers until the key does.
// Cache failures degrade to the database, never to an error.
type PromotionCache struct {
	repository.PromotionRepository

	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps repo with a Redis-backed active-promotion cache.
func New(repo repository.PromotionRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *PromotionCache {
	return &PromotionCache{
		PromotionRepository: repo,
		client:              client,
		ttl:                 ttl,
		logger:              logger,
	}
}

// ListActive serves the cached snapshot when present, otherwise loads from
// the database and stores the result.
func (c *PromotionCache) ListActive(ctx context.Context, asOf time.Time) ([]domain.Promotion, error) {
	data, err := c.client.Get(ctx, activeKey).Bytes()
	if err == nil {
		var promotions []domain.Promotion
		if jsonErr := json.Unmarshal(data, &promotions); jsonErr == nil {
			return promotions, nil
		}
		// Corrupt entry; drop it and fall through to the database.
		c.client.Del(ctx, activeKey)
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "promotion cache read failed",
			slog.String("error", err.Error()),
		)
	}

	promotions, err := c.PromotionRepository.ListActive(ctx, asOf)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(promotions); err == nil {
		if err := c.client.Set(ctx, activeKey, data, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "promotion cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return promotions, nil
}

// Create invalidates the snapshot after a successful insert.
func (c *PromotionCache) Create(ctx context.Context, p *domain.Promotion) error {
	if err := c.PromotionRepository.Create(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Update invalidates the snapshot after a successful update.
func (c *PromotionCache) Update(ctx context.Context, p *domain.Promotion) error {
	if err := c.PromotionRepository.Update(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *PromotionCache) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, activeKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "promotion cache invalidation failed",
			slog.String("error", err.Error()),
		)
	}
}
