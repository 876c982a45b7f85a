package db

import (
	"fmt"

	"github.com/zulandar/scrutineer/internal/config"
	"github.com/zulandar/scrutineer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Team{},
		&models.InspectionType{},
		&models.InspectionPrereq{},
		&models.Booking{},
		&models.LaneClaim{},
		&models.TimedRun{},
		&models.TrackIncident{},
		&models.PenaltyRule{},
		&models.StaticScore{},
		&models.CompetitionResult{},
		&models.BatchJob{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedInspectionTypes upserts InspectionType rows and replaces their
// prerequisite edges from configuration.
func SeedInspectionTypes(db *gorm.DB, types []config.InspectionTypeConfig) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, tc := range types {
			it := models.InspectionType{
				Key:             tc.Key,
				Name:            tc.Name,
				DurationMinutes: tc.DurationMinutes,
				ConcurrentSlots: tc.ConcurrentSlots,
				SortOrder:       tc.SortOrder,
				WindowStart:     tc.WindowStart,
				WindowEnd:       tc.WindowEnd,
				Active:          !tc.Inactive,
			}
			result := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "duration_minutes", "concurrent_slots", "sort_order",
					"window_start", "window_end", "active",
				}),
			}).Create(&it)
			if result.Error != nil {
				return fmt.Errorf("db: seed inspection type %q: %w", tc.Key, result.Error)
			}

			if err := tx.Where("type_key = ?", tc.Key).Delete(&models.InspectionPrereq{}).Error; err != nil {
				return fmt.Errorf("db: clear prerequisites for %q: %w", tc.Key, err)
			}
			for _, req := range tc.Prerequisites {
				dep := models.InspectionPrereq{TypeKey: tc.Key, RequiresKey: req}
				if err := tx.Create(&dep).Error; err != nil {
					return fmt.Errorf("db: add prerequisite %q -> %q: %w", tc.Key, req, err)
				}
			}
		}
		return nil
	})
}

// SeedPenaltyRules upserts PenaltyRule rows by name.
func SeedPenaltyRules(db *gorm.DB, rules []config.PenaltyRuleConfig) error {
	for _, rc := range rules {
		rule := models.PenaltyRule{
			Name:         rc.Name,
			EventType:    rc.EventType,
			IncidentType: rc.IncidentType,
			PenaltyType:  rc.PenaltyType,
			PenaltyValue: rc.PenaltyValue,
			MaxCount:     rc.MaxCount,
			Active:       !rc.Inactive,
		}
		result := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"event_type", "incident_type", "penalty_type", "penalty_value", "max_count", "active",
			}),
		}).Create(&rule)
		if result.Error != nil {
			return fmt.Errorf("db: seed penalty rule %q: %w", rc.Name, result.Error)
		}
	}
	return nil
}
