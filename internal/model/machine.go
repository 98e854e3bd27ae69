package model

import "time"

// Machine represents one milk analyzer terminal.
//
// Code holds the canonical machine identifier for machines registered with a
// legacy alphanumeric id (e.g. "m102"); machines registered by row id leave it
// equal to the decimal row id. Identifier spellings sent by firmware are
// normalized before lookup, so within one society no two machines may share a
// spelling-equivalence class.
type Machine struct {
	ID              uint   `gorm:"primaryKey"`
	SocietyID       uint   `gorm:"index;not null"`
	Code            string `gorm:"size:32;index"`
	MachineType     string `gorm:"size:32"`
	FirmwareVersion string `gorm:"size:32"`
	Active          bool   `gorm:"not null;default:true"`

	// Credential delivery flags. A password value may remain stored while its
	// flag is unset; an unset flag means the value must never be delivered.
	UserPassword       string `gorm:"size:64"`
	SupervisorPassword string `gorm:"size:64"`
	StatusU            bool   `gorm:"not null;default:false"`
	StatusS            bool   `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
