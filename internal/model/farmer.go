package model

import "time"

// Farmer represents one milk supplier registered with a society.
type Farmer struct {
	ID        uint    `gorm:"primaryKey"`
	SocietyID uint    `gorm:"index;not null"`
	MachineID *uint   `gorm:"index"` // optional binding to one terminal
	Code      string  `gorm:"size:32;not null"`
	RFID      string  `gorm:"column:rf_id;size:64"`
	Name      string  `gorm:"size:128"`
	Phone     string  `gorm:"size:20"`
	SMS       int     `gorm:"not null;default:0"`
	Bonus     float64 `gorm:"not null;default:0"`
	Active    bool    `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
