// Package store is the typed persistence boundary for the booking and
// results engines. Each method corresponds to one query or write shape.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zulandar/scrutineer/internal/models"
)

var (
	// ErrConflict is returned when a booking's lane was taken concurrently.
	ErrConflict = errors.New("store: lane already taken")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrStatusChanged is returned when a booking left the expected status
	// before a conditional update reached it.
	ErrStatusChanged = errors.New("store: booking status changed concurrently")
)

// TypeOrder selects the ordering of ListInspectionTypes.
type TypeOrder string

const (
	OrderBySortOrder TypeOrder = "sort_order"
	OrderByKey       TypeOrder = "key"
)

// BookingFilter narrows ListBookings. Zero fields are ignored.
type BookingFilter struct {
	Date             string
	InspectionTypeID uint
	TeamID           uint
}

// IncidentFilter narrows ListIncidents. Zero fields are ignored.
type IncidentFilter struct {
	TeamID         uint
	EventType      string
	PenaltyApplied *bool
}

// RunFilter narrows ListTimedRuns. Nil/empty fields are ignored.
type RunFilter struct {
	Status    []string
	Processed *bool
}

// RunUpdate is the single write the penalty engine makes to a run.
type RunUpdate struct {
	FinalTime *float64
	Status    string
	Processed bool
}

// Repository is everything the engines read from and write to the store.
type Repository interface {
	ListInspectionTypes(ctx context.Context, order TypeOrder) ([]models.InspectionType, error)
	GetInspectionType(ctx context.Context, id uint) (*models.InspectionType, error)
	GetTeam(ctx context.Context, id uint) (*models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)

	ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error)
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id uint, from, to string) error

	ListActivePenaltyRules(ctx context.Context) ([]models.PenaltyRule, error)
	ListIncidents(ctx context.Context, f IncidentFilter) ([]models.TrackIncident, error)
	ListTimedRuns(ctx context.Context, f RunFilter) ([]models.TimedRun, error)
	UpdateTimedRun(ctx context.Context, id uint, u RunUpdate) error
	MarkIncidentPenaltyApplied(ctx context.Context, id uint) error
	ApplyRunPenalty(ctx context.Context, runID uint, u RunUpdate, incidentIDs []uint) error

	ListApprovedScores(ctx context.Context, event string, teamID uint) ([]models.StaticScore, error)
	UpsertCompetitionResult(ctx context.Context, r *models.CompetitionResult) error
	ListCompetitionResults(ctx context.Context) ([]models.CompetitionResult, error)

	CreateJob(ctx context.Context, job *models.BatchJob) error
	FinishJob(ctx context.Context, id string, processed, failed int, failedIDs string, jobErr error, finishedAt time.Time) error
}

// IsRetryable reports whether err is a transient persistence failure worth
// retrying. Domain outcomes (conflict, not found) are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrStatusChanged) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Retry runs fn up to attempts times while it fails with a retryable error,
// sleeping backoff*attempt between tries.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(i)):
		}
	}
	return err
}
