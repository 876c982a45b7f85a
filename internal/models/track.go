package models

import "time"

// Dynamic event kinds.
const (
	EventAcceleration = "acceleration"
	EventSkidpad      = "skidpad"
	EventAutocross    = "autocross"
	EventEndurance    = "endurance"
)

// TimedRun status values.
const (
	RunValid = "valid"
	RunDSQ   = "DSQ"
	RunDNF   = "DNF"
)

// Penalty types.
const (
	PenaltyTime           = "time_penalty"
	PenaltyPercentage     = "percentage"
	PenaltyPointDeduction = "point_deduction"
	PenaltyDisqualify     = "disqualification"
)

// IncidentDOO is the "down or out" cone incident code; IncidentOOC is "off course".
const (
	IncidentDOO = "DOO"
	IncidentOOC = "OOC"
)

// TimedRun is one dynamic-event attempt reported by the timing system.
type TimedRun struct {
	ID         uint     `gorm:"primaryKey;autoIncrement"`
	TeamID     uint     `gorm:"not null;index"`
	EventType  string   `gorm:"size:32;not null;index"`
	RawTime    float64  `gorm:"not null"`
	FinalTime  *float64 // nil until processed, and for DSQ runs
	Status     string   `gorm:"size:16;not null;default:valid;index"`
	Processed  bool     `gorm:"default:false;index"`
	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TrackIncident is a marshal-logged event (cone down, off course, ...).
type TrackIncident struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	TeamID         uint   `gorm:"not null;index:idx_incident_team_event"`
	EventType      string `gorm:"size:32;not null;index:idx_incident_team_event"`
	IncidentType   string `gorm:"size:16;not null"`
	Severity       string `gorm:"size:16"`
	Timestamp      time.Time
	PenaltyApplied bool `gorm:"default:false"`
	CreatedAt      time.Time
}

// PenaltyRule maps an (event, incident) pair to a penalty.
type PenaltyRule struct {
	ID           uint    `gorm:"primaryKey;autoIncrement"`
	Name         string  `gorm:"size:64;not null;uniqueIndex"`
	EventType    string  `gorm:"size:32;not null;index:idx_rule_match"`
	IncidentType string  `gorm:"size:16;not null;index:idx_rule_match"`
	PenaltyType  string  `gorm:"size:32;not null"`
	PenaltyValue float64 `gorm:"not null"`
	MaxCount     int
	Active       bool `gorm:"index"`
}
