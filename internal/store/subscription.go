package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dairy-collection-backend/internal/model"
)

// UpsertSubscription creates or refreshes a push subscription and replaces
// its watched (tenant, machine) targets. Lives in the public schema.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription, targets []model.SubscriptionTarget) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error
		if err != nil {
			return err
		}

		err = tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionTarget{}).Error
		if err != nil {
			return err
		}

		if len(targets) == 0 {
			return nil
		}
		for i := range targets {
			targets[i].Endpoint = sub.Endpoint
		}
		return tx.Create(&targets).Error
	})
}

// DeleteSubscription removes a subscription and its targets.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.SubscriptionTarget{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}

// SubscriptionTargets lists what one subscription watches.
func (s *gormStore) SubscriptionTargets(ctx context.Context, endpoint string) ([]model.SubscriptionTarget, error) {
	var targets []model.SubscriptionTarget
	err := s.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Find(&targets).Error
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// SubscribersForMachine returns the subscriptions watching one machine of
// one tenant.
func (s *gormStore) SubscribersForMachine(ctx context.Context, tenantID, machineID uint) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).Model(&model.PushSubscription{}).
		Joins("JOIN subscription_targets st ON st.endpoint = push_subscriptions.endpoint").
		Where("st.tenant_id = ? AND st.machine_id = ?", tenantID, machineID).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
