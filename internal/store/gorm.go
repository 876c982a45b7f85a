package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/scrutineer/internal/db"
	"github.com/zulandar/scrutineer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Batch job status values.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobPartial   = "partial"
	JobFailed    = "failed"
)

// Gorm implements Repository on a GORM connection.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps a GORM connection.
func NewGorm(gormDB *gorm.DB) *Gorm {
	return &Gorm{db: gormDB}
}

var _ Repository = (*Gorm)(nil)

func (g *Gorm) ListInspectionTypes(ctx context.Context, order TypeOrder) ([]models.InspectionType, error) {
	q := g.db.WithContext(ctx).Preload("Prereqs")
	switch order {
	case OrderByKey:
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}})
	default:
		q = q.Order("sort_order ASC, id ASC")
	}
	var types []models.InspectionType
	if err := q.Find(&types).Error; err != nil {
		return nil, fmt.Errorf("store: list inspection types: %w", err)
	}
	return types, nil
}

func (g *Gorm) GetInspectionType(ctx context.Context, id uint) (*models.InspectionType, error) {
	var it models.InspectionType
	if err := g.db.WithContext(ctx).Preload("Prereqs").Where("id = ?", id).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("inspection type %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get inspection type %d: %w", id, err)
	}
	return &it, nil
}

func (g *Gorm) GetTeam(ctx context.Context, id uint) (*models.Team, error) {
	var team models.Team
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("team %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get team %d: %w", id, err)
	}
	return &team, nil
}

func (g *Gorm) ListTeams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := g.db.WithContext(ctx).Order("id ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("store: list teams: %w", err)
	}
	return teams, nil
}

func (g *Gorm) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	q := g.db.WithContext(ctx).Model(&models.Booking{})
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}
	if f.InspectionTypeID != 0 {
		q = q.Where("inspection_type_id = ?", f.InspectionTypeID)
	}
	if f.TeamID != 0 {
		q = q.Where("team_id = ?", f.TeamID)
	}
	var bookings []models.Booking
	if err := q.Order("date ASC, start_time ASC, resource_index ASC, id ASC").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("store: list bookings: %w", err)
	}
	return bookings, nil
}

func (g *Gorm) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get booking %d: %w", id, err)
	}
	return &b, nil
}

// CreateBooking inserts the booking and, for bookings that occupy a lane,
// its lane claim in one transaction. A taken lane yields ErrConflict.
func (g *Gorm) CreateBooking(ctx context.Context, b *models.Booking) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		if b.ReopenOf != nil || b.Status == models.BookingCancelled {
			return nil
		}
		claim := models.LaneClaim{
			InspectionTypeID: b.InspectionTypeID,
			Date:             b.Date,
			StartTime:        b.StartTime,
			ResourceIndex:    b.ResourceIndex,
			BookingID:        b.ID,
		}
		if err := tx.Create(&claim).Error; err != nil {
			if db.IsDuplicateKey(err) {
				return ErrConflict
			}
			return fmt.Errorf("claim lane: %w", err)
		}
		return nil
	})
	if err != nil {
		b.ID = 0
	}
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("type %d %s %s lane %d: %w", b.InspectionTypeID, b.Date, b.StartTime, b.ResourceIndex, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// UpdateBookingStatus moves a booking from one status to another. The write
// only applies while the row still holds from; otherwise ErrStatusChanged.
// Cancelling also releases the lane.
func (g *Gorm) UpdateBookingStatus(ctx context.Context, id uint, from, to string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Booking{}).Where("id = ? AND status = ?", id, from).Update("status", to)
		if result.Error != nil {
			return fmt.Errorf("store: update booking %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Booking{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return fmt.Errorf("store: update booking %d: %w", id, err)
			}
			if n == 0 {
				return fmt.Errorf("booking %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("booking %d no longer %q: %w", id, from, ErrStatusChanged)
		}
		if to == models.BookingCancelled {
			if err := tx.Where("booking_id = ?", id).Delete(&models.LaneClaim{}).Error; err != nil {
				return fmt.Errorf("store: release lane for booking %d: %w", id, err)
			}
		}
		return nil
	})
}

func (g *Gorm) ListActivePenaltyRules(ctx context.Context) ([]models.PenaltyRule, error) {
	var rules []models.PenaltyRule
	if err := g.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("store: list penalty rules: %w", err)
	}
	return rules, nil
}

func (g *Gorm) ListIncidents(ctx context.Context, f IncidentFilter) ([]models.TrackIncident, error) {
	q := g.db.WithContext(ctx).Model(&models.TrackIncident{})
	if f.TeamID != 0 {
		q = q.Where("team_id = ?", f.TeamID)
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.PenaltyApplied != nil {
		q = q.Where("penalty_applied = ?", *f.PenaltyApplied)
	}
	var incidents []models.TrackIncident
	if err := q.Order("id ASC").Find(&incidents).Error; err != nil {
		return nil, fmt.Errorf("store: list incidents: %w", err)
	}
	return incidents, nil
}

func (g *Gorm) ListTimedRuns(ctx context.Context, f RunFilter) ([]models.TimedRun, error) {
	q := g.db.WithContext(ctx).Model(&models.TimedRun{})
	if len(f.Status) > 0 {
		q = q.Where("status IN ?", f.Status)
	}
	if f.Processed != nil {
		q = q.Where("processed = ?", *f.Processed)
	}
	var runs []models.TimedRun
	if err := q.Order("id ASC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("store: list timed runs: %w", err)
	}
	return runs, nil
}

func (g *Gorm) UpdateTimedRun(ctx context.Context, id uint, u RunUpdate) error {
	return updateRun(g.db.WithContext(ctx).Where("id = ?", id), id, u)
}

func updateRun(q *gorm.DB, id uint, u RunUpdate) error {
	result := q.Model(&models.TimedRun{}).Updates(map[string]interface{}{
		"final_time": u.FinalTime,
		"status":     u.Status,
		"processed":  u.Processed,
	})
	if result.Error != nil {
		return fmt.Errorf("store: update timed run %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("timed run %d: %w", id, ErrNotFound)
	}
	return nil
}

func (g *Gorm) MarkIncidentPenaltyApplied(ctx context.Context, id uint) error {
	result := g.db.WithContext(ctx).Model(&models.TrackIncident{}).Where("id = ?", id).Update("penalty_applied", true)
	if result.Error != nil {
		return fmt.Errorf("store: mark incident %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}
	return nil
}

// ApplyRunPenalty writes a run's outcome and marks its incidents in one
// transaction, so a run is never processed without its incidents. A run that
// is already processed is left alone and reported as ErrNotFound.
func (g *Gorm) ApplyRunPenalty(ctx context.Context, runID uint, u RunUpdate, incidentIDs []uint) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateRun(tx.Where("id = ? AND processed = ?", runID, false), runID, u); err != nil {
			return err
		}
		if len(incidentIDs) == 0 {
			return nil
		}
		if err := tx.Model(&models.TrackIncident{}).Where("id IN ?", incidentIDs).
			Update("penalty_applied", true).Error; err != nil {
			return fmt.Errorf("store: mark incidents for run %d: %w", runID, err)
		}
		return nil
	})
}

// ListApprovedScores returns approved scores for event, optionally narrowed
// to one team (teamID 0 means all teams), oldest first.
func (g *Gorm) ListApprovedScores(ctx context.Context, event string, teamID uint) ([]models.StaticScore, error) {
	q := g.db.WithContext(ctx).Where("event = ? AND approved = ?", event, true)
	if teamID != 0 {
		q = q.Where("team_id = ?", teamID)
	}
	var scores []models.StaticScore
	if err := q.Order("id ASC").Find(&scores).Error; err != nil {
		return nil, fmt.Errorf("store: list %s scores: %w", event, err)
	}
	return scores, nil
}

// UpsertCompetitionResult replaces the team's result row, or inserts it.
func (g *Gorm) UpsertCompetitionResult(ctx context.Context, r *models.CompetitionResult) error {
	result := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}},
		UpdateAll: true,
	}).Create(r)
	if result.Error != nil {
		return fmt.Errorf("store: upsert result for team %d: %w", r.TeamID, result.Error)
	}
	return nil
}

func (g *Gorm) ListCompetitionResults(ctx context.Context) ([]models.CompetitionResult, error) {
	var results []models.CompetitionResult
	if err := g.db.WithContext(ctx).Order("overall_rank ASC, team_id ASC").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("store: list results: %w", err)
	}
	return results, nil
}

func (g *Gorm) CreateJob(ctx context.Context, job *models.BatchJob) error {
	if job.Status == "" {
		job.Status = JobRunning
	}
	if err := g.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("store: create job: %w", err)
	}
	return nil
}

func (g *Gorm) FinishJob(ctx context.Context, id string, processed, failed int, failedIDs string, jobErr error, finishedAt time.Time) error {
	status := JobCompleted
	msg := ""
	switch {
	case jobErr != nil && processed == 0:
		status = JobFailed
		msg = jobErr.Error()
	case failed > 0 || jobErr != nil:
		status = JobPartial
		if jobErr != nil {
			msg = jobErr.Error()
		}
	}
	result := g.db.WithContext(ctx).Model(&models.BatchJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"processed":     processed,
		"failed":        failed,
		"failed_ids":    failedIDs,
		"error_message": msg,
		"completed_at":  finishedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("store: finish job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}
