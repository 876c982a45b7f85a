package models

import "time"

// CompetitionResult is the derived standing for one team. Rows are rebuilt
// wholesale by each recalculation.
type CompetitionResult struct {
	ID                 uint `gorm:"primaryKey;autoIncrement"`
	TeamID             uint `gorm:"not null;uniqueIndex"`
	DesignScore        float64
	BusinessPlanScore  float64
	CostScore          float64
	StaticPoints       float64
	AccelerationTime   *float64
	AccelerationPoints float64
	SkidpadTime        *float64
	SkidpadPoints      float64
	AutocrossTime      *float64
	AutocrossPoints    float64
	EnduranceTime      *float64
	EndurancePoints    float64
	Penalties          float64
	DynamicPoints      float64
	OverallTotal       float64 `gorm:"index"`
	OverallRank        int
	CalculatedAt       time.Time
}

// BatchJob is the audit row for one penalty or results batch invocation.
type BatchJob struct {
	ID           string `gorm:"primaryKey;size:36"`
	Kind         string `gorm:"size:32;not null;index"`
	Status       string `gorm:"size:16;default:running"`
	Processed    int
	Failed       int
	FailedIDs    string `gorm:"type:text"` // JSON array
	ErrorMessage string `gorm:"type:text"`
	StartedAt    time.Time
	CompletedAt  *time.Time
}
