package model

import "time"

// Tenant represents one organization with its own relational schema.
// Rows are created at provisioning time and are immutable afterwards;
// the schema name is derived from Name and OrgKey, never stored.
type Tenant struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:256;not null"`
	OrgKey    string `gorm:"uniqueIndex;size:64;not null"` // stored uppercase
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
