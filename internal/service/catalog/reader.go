// Package catalog exposes the read-only product view consumed by the
// surrounding API layer. Stock mutation stays with the inventory
// ledger; this path only reads.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
	"github.com/Nikeeta26/Ecommerse/internal/repository"
)

type ProductReader interface {
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
}

type pgReader struct {
	repo repository.ProductRepository
}

func NewProductReader(repo repository.ProductRepository) ProductReader {
	return &pgReader{repo: repo}
}

func (r *pgReader) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return product, nil
}

type cachedReader struct {
	next        ProductReader
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewCachedProductReader wraps a reader with a redis look-aside cache.
func NewCachedProductReader(next ProductReader, redisClient *redis.Client, cacheTTL time.Duration) ProductReader {
	return &cachedReader{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

func (r *cachedReader) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := cacheKey(id)

	if val, err := r.redisClient.Get(ctx, key).Result(); err == nil {
		var product domain.Product
		if err := json.Unmarshal([]byte(val), &product); err == nil {
			return &product, nil
		}
	}

	product, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		r.redisClient.Set(ctx, key, data, r.cacheTTL)
	}

	return product, nil
}

func cacheKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
