package model

import "time"

// RateChart assigns one price table to a (society, channel) pair.
// While Status is 1 the pair must be unique; reassignment replaces the
// existing assignment explicitly, never implicitly.
type RateChart struct {
	ID         uint   `gorm:"primaryKey"`
	SocietyID  uint   `gorm:"index;not null"`
	Channel    int    `gorm:"index;not null"` // 1 COW, 2 BUF, 3 MIX
	Name       string `gorm:"size:128"`
	Status     int    `gorm:"not null;default:1"` // 1 assigned/downloadable
	UploadedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Associations
	Prices []RateChartPrice `gorm:"foreignKey:ChartID"`
}

// RateChartPrice is a single fat/SNF/CLR price point of a chart.
type RateChartPrice struct {
	ID      uint    `gorm:"primaryKey"`
	ChartID uint    `gorm:"index;not null"`
	Fat     float64 `gorm:"not null"`
	Snf     float64 `gorm:"not null"`
	Clr     float64 `gorm:"not null"`
	Rate    float64 `gorm:"not null"`
}

// RateChartDownload records that one machine downloaded one chart.
// The (chart, machine) pair is unique; re-downloads are absorbed by an
// upsert so flaky-device retries never duplicate history.
type RateChartDownload struct {
	ID           uint `gorm:"primaryKey"`
	ChartID      uint `gorm:"uniqueIndex:idx_chart_machine;not null"`
	MachineID    uint `gorm:"uniqueIndex:idx_chart_machine;not null"`
	DownloadedAt time.Time
}
