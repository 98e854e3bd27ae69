// Package retention prunes aged rate-chart download history across all
// tenant schemas on a timer.
package retention

import (
	"context"
	"time"

	"dairy-collection-backend/config"
	"dairy-collection-backend/internal/logs"
	"dairy-collection-backend/internal/store"
	"dairy-collection-backend/internal/tenant"
)

// Service runs the periodic pruning loop.
type Service struct {
	cfg   *config.Config
	store store.Store
}

// NewService creates a retention service.
func NewService(cfg *config.Config, s store.Store) *Service {
	return &Service{cfg: cfg, store: s}
}

// Run starts the pruning loop. It returns when ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Retention.Enabled {
		logs.Logger.Debug("retention service disabled, not starting")
		return
	}
	logs.Logger.Info("starting retention service")

	s.PruneOnce(ctx)

	ticker := time.NewTicker(s.cfg.Retention.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logs.Logger.Info("retention service shutting down")
			return
		case <-ticker.C:
			s.PruneOnce(ctx)
		}
	}
}

// PruneOnce walks every active tenant schema and deletes download-history
// rows past the configured age.
func (s *Service) PruneOnce(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.Retention.MaxAgeDays)

	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		logs.Logger.WithError(err).Error("retention: listing tenants")
		return
	}

	for _, t := range tenants {
		tc := tenant.Context{ID: t.ID, Name: t.Name, Schema: tenant.SchemaName(t.Name, t.OrgKey)}
		n, err := s.store.PruneDownloadHistory(ctx, tc, cutoff)
		if err != nil {
			logs.Logger.WithError(err).Errorf("retention: pruning schema %s", tc.Schema)
			continue
		}
		if n > 0 {
			logs.Logger.Infof("retention: pruned %d download rows from %s", n, tc.Schema)
		}
	}
}
