package models

import "time"

// Booking status values.
const (
	BookingUpcoming  = "upcoming"
	BookingOngoing   = "ongoing"
	BookingPassed    = "passed"
	BookingFailed    = "failed"
	BookingCancelled = "cancelled"
)

// Booking is a team's reservation of one inspection lane at one slot.
type Booking struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	TeamID            uint   `gorm:"not null;index"`
	InspectionTypeID  uint   `gorm:"not null;index:idx_booking_day"`
	Date              string `gorm:"size:10;not null;index:idx_booking_day"` // YYYY-MM-DD
	StartTime         string `gorm:"size:5;not null"`                        // HH:MM
	EndTime           string `gorm:"size:5;not null"`
	ResourceIndex     int    `gorm:"not null;default:0"`
	Status            string `gorm:"size:16;not null;default:upcoming;index"`
	IsRescrutineering bool   `gorm:"default:false"`
	ReopenOf          *uint  // set on rows created by reopening a passed booking
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LaneClaim holds the physical lane for a live booking. The composite primary
// key makes a second claim on the same lane at the same slot fail.
type LaneClaim struct {
	InspectionTypeID uint   `gorm:"primaryKey;autoIncrement:false"`
	Date             string `gorm:"primaryKey;size:10"`
	StartTime        string `gorm:"primaryKey;size:5"`
	ResourceIndex    int    `gorm:"primaryKey;autoIncrement:false"`
	BookingID        uint   `gorm:"not null;uniqueIndex"`
	CreatedAt        time.Time
}
