package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/tenant"
)

// ActiveRateChart returns the single downloadable chart for a
// (society, channel) pair.
func (s *gormStore) ActiveRateChart(ctx context.Context, tc tenant.Context, societyID uint, ch parse.Channel) (*model.RateChart, error) {
	var chart model.RateChart
	err := s.db.WithContext(ctx).Table(tc.Table("rate_charts")).
		Where("society_id = ? AND channel = ? AND status = ?", societyID, int(ch), 1).
		First(&chart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChartNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chart, nil
}

// ChartPrices returns the chart's price points ordered the way the
// firmware iterates them: ascending fat, then SNF.
func (s *gormStore) ChartPrices(ctx context.Context, tc tenant.Context, chartID uint) ([]model.RateChartPrice, error) {
	var prices []model.RateChartPrice
	err := s.db.WithContext(ctx).Table(tc.Table("rate_chart_prices")).
		Where("chart_id = ?", chartID).
		Order("fat ASC, snf ASC").
		Find(&prices).Error
	if err != nil {
		return nil, err
	}
	return prices, nil
}

// RecordChartDownload upserts the (chart, machine) download-history row.
// Re-downloads from a retrying device hit the conflict clause and leave
// exactly one row behind.
func (s *gormStore) RecordChartDownload(ctx context.Context, tc tenant.Context, chartID, machineID uint, now time.Time) error {
	row := model.RateChartDownload{
		ChartID:      chartID,
		MachineID:    machineID,
		DownloadedAt: now,
	}
	return s.db.WithContext(ctx).Table(tc.Table("rate_chart_downloads")).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chart_id"}, {Name: "machine_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

// AssignRateChart assigns a chart to its (society, channel) pair. While a
// pair has an active chart, assigning another fails with ErrChartAssigned
// unless replace is set, in which case the old assignment is deactivated
// in the same transaction. The conflict surfaces to the assigning admin,
// never to a device.
func (s *gormStore) AssignRateChart(ctx context.Context, tc tenant.Context, chart *model.RateChart, replace bool) error {
	table := tc.Table("rate_charts")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.RateChart
		err := tx.Table(table).
			Where("society_id = ? AND channel = ? AND status = ?", chart.SocietyID, chart.Channel, 1).
			First(&existing).Error
		switch {
		case err == nil && !replace:
			return ErrChartAssigned
		case err == nil:
			err = tx.Table(table).Where("id = ?", existing.ID).
				Updates(map[string]any{"status": 0, "updated_at": time.Now()}).Error
			if err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		chart.Status = 1
		return tx.Table(table).Create(chart).Error
	})
}

// ResetChartDownloads clears a chart's download history so machines fetch
// it again (admin action).
func (s *gormStore) ResetChartDownloads(ctx context.Context, tc tenant.Context, chartID uint) error {
	return s.db.WithContext(ctx).Table(tc.Table("rate_chart_downloads")).
		Where("chart_id = ?", chartID).
		Delete(&model.RateChartDownload{}).Error
}

// PruneDownloadHistory deletes download-history rows older than the
// cutoff; used by the retention service.
func (s *gormStore) PruneDownloadHistory(ctx context.Context, tc tenant.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Table(tc.Table("rate_chart_downloads")).
		Where("downloaded_at < ?", cutoff).
		Delete(&model.RateChartDownload{})
	return res.RowsAffected, res.Error
}
