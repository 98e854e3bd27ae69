package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscriptions live in the public schema; the machines they watch live in
// tenant schemas, so the link is the explicit SubscriptionTarget table
// rather than a gorm association.
type PushSubscription struct {
	Endpoint  string `gorm:"primaryKey"`
	P256DH    string `gorm:"column:p256dh;not null"`
	Auth      string `gorm:"not null"`
	CreatedAt time.Time
}

// SubscriptionTarget binds a subscription to one machine of one tenant.
type SubscriptionTarget struct {
	ID        uint   `gorm:"primaryKey"`
	Endpoint  string `gorm:"uniqueIndex:idx_sub_target;size:512;not null"`
	TenantID  uint   `gorm:"uniqueIndex:idx_sub_target;not null"`
	MachineID uint   `gorm:"uniqueIndex:idx_sub_target;not null"`
	CreatedAt time.Time
}
