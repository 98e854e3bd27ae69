package model

import "time"

// Society represents a milk collection society within one tenant schema.
// Code is the textual spelling the firmware sends, with or without the
// "S-" prefix; both must resolve to the same row.
type Society struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:32;index;not null"`
	Name      string `gorm:"size:256"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Machines []Machine `gorm:"foreignKey:SocietyID"`
}
