package models

// InspectionType is one scrutineering station kind (e.g. electrical, tilt).
// Bookings reference it by ID; the prerequisite graph is keyed by Key.
type InspectionType struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Key             string `gorm:"size:64;not null;uniqueIndex"`
	Name            string `gorm:"size:128;not null"`
	DurationMinutes int    `gorm:"not null"`
	ConcurrentSlots int    `gorm:"not null;default:1"`
	SortOrder       int    `gorm:"default:0;index"`
	WindowStart     string `gorm:"size:5"` // HH:MM, empty = competition default
	WindowEnd       string `gorm:"size:5"`
	Active          bool

	Prereqs []InspectionPrereq `gorm:"foreignKey:TypeKey;references:Key"`
}

// InspectionPrereq records that TypeKey may only be booked once RequiresKey
// has been passed.
type InspectionPrereq struct {
	TypeKey     string `gorm:"primaryKey;size:64"`
	RequiresKey string `gorm:"primaryKey;size:64"`
}

// PrerequisiteKeys returns the keys this type depends on.
func (t InspectionType) PrerequisiteKeys() []string {
	keys := make([]string, 0, len(t.Prereqs))
	for _, p := range t.Prereqs {
		keys = append(keys, p.RequiresKey)
	}
	return keys
}
