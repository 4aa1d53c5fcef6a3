package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

// Catalog is what the refresher keeps fresh.
type Catalog interface {
	Warm(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// CatalogRefresher reloads bookmarks, categories and tags on a fixed
// interval and whenever a manual trigger arrives.
type CatalogRefresher struct {
	catalog       Catalog
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

func NewCatalogRefresher(
	catalog Catalog,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogRefresher {
	return &CatalogRefresher{
		catalog:       catalog,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start warms the catalog through the cache and begins periodic refresh.
// A failed warm-up is logged, not fatal: the backend may come up later and
// reads fall through to it anyway.
func (cr *CatalogRefresher) Start(ctx context.Context) error {
	if err := cr.catalog.Warm(ctx); err != nil {
		cr.logger.Warn("initial catalog load failed", logger.Error(err))
	} else {
		cr.logger.Info("catalog loaded")
	}

	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cr.refresh(ctx)
			case <-cr.manualTrigger:
				cr.logger.Info("manual catalog refresh triggered")
				cr.refresh(ctx)
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (cr *CatalogRefresher) Stop() {
	close(cr.stopCh)
}

func (cr *CatalogRefresher) refresh(ctx context.Context) {
	start := time.Now()
	if err := cr.catalog.Refresh(ctx); err != nil {
		cr.logger.Error("failed to refresh catalog", logger.Error(err))
		return
	}
	cr.logger.Debug("catalog refreshed", logger.Duration("took", time.Since(start)))
}
