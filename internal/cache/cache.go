// Package cache holds the catalog snapshot cache. A snapshot is the last
// good inventory+catalog fetch from the shop-platform backend; when the
// upstream is unreachable the terminal keeps selling from the snapshot.
package cache

import (
	"context"
	"time"

	"warunglink/terminal/internal/domain"
)

// CatalogSnapshot is the cached join input for rebuilding a catalog index.
type CatalogSnapshot struct {
	ShopID    int64                   `json:"shop_id"`
	FetchedAt time.Time               `json:"fetched_at"`
	Inventory []domain.InventoryItem  `json:"inventory"`
	Products  []domain.CatalogProduct `json:"products"`
}

type CatalogCache interface {
	Get(ctx context.Context, key string) (*CatalogSnapshot, bool, error)
	Set(ctx context.Context, key string, value *CatalogSnapshot, ttl time.Duration) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) (*CatalogSnapshot, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ string, _ *CatalogSnapshot, _ time.Duration) error {
	return nil
}
