package models

import "time"

// Team is a competing team. The engine reads teams but never mutates them.
type Team struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"size:128;not null"`
	VehicleNumber string `gorm:"size:16"`
	CreatedAt     time.Time
}

// Static event kinds.
const (
	EventDesign       = "design"
	EventBusinessPlan = "business_plan"
	EventCost         = "cost"
)

// StaticScore is a judged score for one static event. Only approved scores
// count toward results.
type StaticScore struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	TeamID    uint    `gorm:"not null;index:idx_score_team_event"`
	Event     string  `gorm:"size:32;not null;index:idx_score_team_event"`
	Score     float64 `gorm:"not null"`
	Approved  bool    `gorm:"index"`
	CreatedAt time.Time
}
