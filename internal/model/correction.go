package model

import "time"

// MachineCorrection holds per-channel calibration offsets for one machine.
// Channel 1 is COW, 2 is BUF, 3 is MIX. At most one row per machine may be
// active (Status = 1) per calendar day; after every device write the
// machine's rows are pruned to the five most recently created.
type MachineCorrection struct {
	ID        uint `gorm:"primaryKey"`
	MachineID uint `gorm:"index;not null"`
	Status    int  `gorm:"not null;default:1"` // 1 active, 0 invalidated

	Fat1     float64 `gorm:"not null;default:0"`
	Snf1     float64 `gorm:"not null;default:0"`
	Clr1     float64 `gorm:"not null;default:0"`
	Temp1    float64 `gorm:"not null;default:0"`
	Water1   float64 `gorm:"not null;default:0"`
	Protein1 float64 `gorm:"not null;default:0"`

	Fat2     float64 `gorm:"not null;default:0"`
	Snf2     float64 `gorm:"not null;default:0"`
	Clr2     float64 `gorm:"not null;default:0"`
	Temp2    float64 `gorm:"not null;default:0"`
	Water2   float64 `gorm:"not null;default:0"`
	Protein2 float64 `gorm:"not null;default:0"`

	Fat3     float64 `gorm:"not null;default:0"`
	Snf3     float64 `gorm:"not null;default:0"`
	Clr3     float64 `gorm:"not null;default:0"`
	Temp3    float64 `gorm:"not null;default:0"`
	Water3   float64 `gorm:"not null;default:0"`
	Protein3 float64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
