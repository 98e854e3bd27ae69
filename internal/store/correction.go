package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/tenant"
)

// keepCorrections is the per-machine history window: after every write the
// machine's rows are pruned to this many most recently created.
const keepCorrections = 5

// ActiveCorrection returns the machine's single active correction row.
func (s *gormStore) ActiveCorrection(ctx context.Context, tc tenant.Context, machineID uint) (*model.MachineCorrection, error) {
	var cor model.MachineCorrection
	err := s.db.WithContext(ctx).Table(tc.Table("machine_corrections")).
		Where("machine_id = ? AND status = ?", machineID, 1).
		Order("created_at DESC").
		First(&cor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCorrectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cor, nil
}

// SaveCorrection applies a device-originated correction write for one
// channel. If an active row exists and was created today, only that
// channel's columns are updated in place; otherwise a fresh row is
// inserted with the other channels zeroed. The whole check-update-insert-
// prune sequence runs in one transaction so concurrent device retries for
// the same machine cannot interleave.
func (s *gormStore) SaveCorrection(ctx context.Context, tc tenant.Context, machineID uint, ch parse.Channel, v parse.CorrectionValues, now time.Time) error {
	table := tc.Table("machine_corrections")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.MachineCorrection
		err := tx.Table(table).
			Where("machine_id = ? AND status = ?", machineID, 1).
			Order("created_at DESC").
			First(&cur).Error

		switch {
		case err == nil && sameDay(cur.CreatedAt, now):
			updates := channelColumns(ch, v)
			updates["updated_at"] = now
			if err := tx.Table(table).Where("id = ?", cur.ID).Updates(updates).Error; err != nil {
				return err
			}
		case err == nil || errors.Is(err, gorm.ErrRecordNotFound):
			row := model.MachineCorrection{
				MachineID: machineID,
				Status:    1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			applyChannel(&row, ch, v)
			if err := tx.Table(table).Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return pruneCorrections(tx, table, machineID)
	})
}

// ReplaceCorrection is the admin-originated write: every prior row is
// deactivated and one fresh row inserted, regardless of date.
func (s *gormStore) ReplaceCorrection(ctx context.Context, tc tenant.Context, machineID uint, ch parse.Channel, v parse.CorrectionValues, now time.Time) error {
	table := tc.Table("machine_corrections")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Table(table).
			Where("machine_id = ? AND status = ?", machineID, 1).
			Updates(map[string]any{"status": 0, "updated_at": now}).Error
		if err != nil {
			return err
		}

		row := model.MachineCorrection{
			MachineID: machineID,
			Status:    1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyChannel(&row, ch, v)
		if err := tx.Table(table).Create(&row).Error; err != nil {
			return err
		}
		return pruneCorrections(tx, table, machineID)
	})
}

// InvalidateCorrections handles the device's "applied" acknowledgement:
// every active row for the machine goes inactive. Idempotent.
func (s *gormStore) InvalidateCorrections(ctx context.Context, tc tenant.Context, machineID uint) error {
	return s.db.WithContext(ctx).Table(tc.Table("machine_corrections")).
		Where("machine_id = ? AND status = ?", machineID, 1).
		Updates(map[string]any{"status": 0, "updated_at": time.Now()}).Error
}

func pruneCorrections(tx *gorm.DB, table string, machineID uint) error {
	var keep []uint
	err := tx.Table(table).
		Where("machine_id = ?", machineID).
		Order("created_at DESC").
		Limit(keepCorrections).
		Pluck("id", &keep).Error
	if err != nil {
		return err
	}
	if len(keep) < keepCorrections {
		return nil
	}
	return tx.Table(table).
		Where("machine_id = ? AND id NOT IN ?", machineID, keep).
		Delete(&model.MachineCorrection{}).Error
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// channelColumns names the update columns for one channel's offsets.
func channelColumns(ch parse.Channel, v parse.CorrectionValues) map[string]any {
	switch ch {
	case parse.ChannelBuf:
		return map[string]any{
			"fat2": v.Fat, "snf2": v.Snf, "clr2": v.Clr,
			"temp2": v.Temp, "water2": v.Water, "protein2": v.Protein,
		}
	case parse.ChannelMix:
		return map[string]any{
			"fat3": v.Fat, "snf3": v.Snf, "clr3": v.Clr,
			"temp3": v.Temp, "water3": v.Water, "protein3": v.Protein,
		}
	default:
		return map[string]any{
			"fat1": v.Fat, "snf1": v.Snf, "clr1": v.Clr,
			"temp1": v.Temp, "water1": v.Water, "protein1": v.Protein,
		}
	}
}

func applyChannel(row *model.MachineCorrection, ch parse.Channel, v parse.CorrectionValues) {
	switch ch {
	case parse.ChannelBuf:
		row.Fat2, row.Snf2, row.Clr2 = v.Fat, v.Snf, v.Clr
		row.Temp2, row.Water2, row.Protein2 = v.Temp, v.Water, v.Protein
	case parse.ChannelMix:
		row.Fat3, row.Snf3, row.Clr3 = v.Fat, v.Snf, v.Clr
		row.Temp3, row.Water3, row.Protein3 = v.Temp, v.Water, v.Protein
	default:
		row.Fat1, row.Snf1, row.Clr1 = v.Fat, v.Snf, v.Clr
		row.Temp1, row.Water1, row.Protein1 = v.Temp, v.Water, v.Protein
	}
}
