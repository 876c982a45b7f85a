// Package booking commits inspection bookings: it checks eligibility, asks
// the allocator for a lane and writes through the repository, retrying on
// lane conflicts.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/scrutineer/internal/allocate"
	"github.com/zulandar/scrutineer/internal/eligibility"
	"github.com/zulandar/scrutineer/internal/models"
	"github.com/zulandar/scrutineer/internal/slot"
	"github.com/zulandar/scrutineer/internal/store"
)

const (
	dateLayout           = "2006-01-02"
	defaultReadAttempts  = 3
	defaultReadBackoff   = 100 * time.Millisecond
	defaultWriteAttempts = 3
	defaultWriteBackoff  = 100 * time.Millisecond
)

// ValidTransitions maps each booking status to its valid next statuses.
// passed, failed and cancelled are terminal.
var ValidTransitions = map[string][]string{
	models.BookingUpcoming: {models.BookingOngoing, models.BookingCancelled},
	models.BookingOngoing:  {models.BookingPassed, models.BookingFailed, models.BookingCancelled},
}

// Options configures a Service.
type Options struct {
	DayStart           string // default window when a type has none
	DayEnd             string
	MaxConflictRetries int
}

// Service is the booking entry point used by the CLI and the surrounding
// application.
type Service struct {
	repo  store.Repository
	opts  Options
	locks *keyedMutex
}

// Request asks for a booking at a specific slot.
type Request struct {
	TeamID    uint
	TypeID    uint
	Date      string
	StartTime string
}

// NewService builds a Service over repo.
func NewService(repo store.Repository, opts Options) *Service {
	if opts.DayStart == "" {
		opts.DayStart = "08:00"
	}
	if opts.DayEnd == "" {
		opts.DayEnd = "18:00"
	}
	if opts.MaxConflictRetries <= 0 {
		opts.MaxConflictRetries = 3
	}
	return &Service{repo: repo, opts: opts, locks: newKeyedMutex()}
}

// snapshot is the state one allocation decision is made against.
type snapshot struct {
	team       *models.Team
	typ        *models.InspectionType
	candidates []allocate.Candidate
	slots      []string
	hasFailed  bool
	minStart   string
}

// Eligibility reports whether the team may book the type. A missing team is
// reported as the transient loading state.
func (s *Service) Eligibility(ctx context.Context, teamID, typeID uint) (eligibility.Result, error) {
	typ, err := s.repo.GetInspectionType(ctx, typeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return eligibility.Result{}, invalid("inspection type", "%d does not exist", typeID)
		}
		return eligibility.Result{}, fmt.Errorf("booking: %w", err)
	}
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return eligibility.Result{}, fmt.Errorf("booking: %w", err)
	}
	catalog, err := s.repo.ListInspectionTypes(ctx, store.OrderBySortOrder)
	if err != nil {
		return eligibility.Result{}, fmt.Errorf("booking: %w", err)
	}
	history, err := s.repo.ListBookings(ctx, store.BookingFilter{TeamID: teamID})
	if err != nil {
		return eligibility.Result{}, fmt.Errorf("booking: %w", err)
	}
	return eligibility.Evaluate(team, history, catalog, *typ), nil
}

// Candidates returns the offered (slot, lane) pairs for the team.
func (s *Service) Candidates(ctx context.Context, teamID, typeID uint, date string) ([]allocate.Candidate, error) {
	snap, err := s.load(ctx, teamID, typeID, date)
	if err != nil {
		return nil, err
	}
	return snap.candidates, nil
}

// Book commits a booking at req.StartTime on the first free lane. Lane
// conflicts with concurrent writers are retried against a fresh snapshot.
func (s *Service) Book(ctx context.Context, req Request) (*models.Booking, error) {
	if _, err := slot.Parse(req.StartTime); err != nil {
		return nil, invalid("start time", "%q is not HH:MM", req.StartTime)
	}

	unlock := s.locks.Lock(fmt.Sprintf("%d/%s", req.TypeID, req.Date))
	defer unlock()

	for attempt := 0; attempt <= s.opts.MaxConflictRetries; attempt++ {
		snap, err := s.load(ctx, req.TeamID, req.TypeID, req.Date)
		if err != nil {
			return nil, err
		}
		if !contains(snap.slots, req.StartTime) {
			return nil, invalid("start time", "%s is not a slot for %s", req.StartTime, snap.typ.Name)
		}
		cand, ok := allocate.ForSlot(snap.candidates, req.StartTime)
		if !ok {
			if snap.hasFailed && req.StartTime < snap.minStart {
				return nil, fmt.Errorf("%w: earliest rescrutineering slot is %s", ErrSlotRestricted, snap.minStart)
			}
			return nil, fmt.Errorf("%w: %s %s %s", ErrSlotExhausted, snap.typ.Name, req.Date, req.StartTime)
		}

		b := &models.Booking{
			TeamID:            req.TeamID,
			InspectionTypeID:  req.TypeID,
			Date:              req.Date,
			StartTime:         cand.StartTime,
			EndTime:           cand.EndTime,
			ResourceIndex:     cand.ResourceIndex,
			Status:            models.BookingUpcoming,
			IsRescrutineering: snap.hasFailed,
		}
		err = store.Retry(ctx, defaultWriteAttempts, defaultWriteBackoff, func() error {
			return s.repo.CreateBooking(ctx, b)
		})
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("booking: create: %w", err)
		}
		log.Printf("booking: lane conflict for team %d at %s %s lane %d, retrying (%d/%d)",
			req.TeamID, req.Date, req.StartTime, cand.ResourceIndex, attempt+1, s.opts.MaxConflictRetries)
	}
	return nil, fmt.Errorf("booking: %s %s still contended after %d retries: %w",
		req.Date, req.StartTime, s.opts.MaxConflictRetries, store.ErrConflict)
}

// UpdateStatus moves a booking along its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status string) error {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return fmt.Errorf("booking: %w", err)
	}
	if !isValidTransition(b.Status, status) {
		return invalid("status", "cannot move booking %d from %q to %q; valid transitions: %v",
			id, b.Status, status, ValidTransitions[b.Status])
	}
	err = s.repo.UpdateBookingStatus(ctx, id, b.Status, status)
	if errors.Is(err, store.ErrStatusChanged) {
		return invalid("status", "booking %d left %q before it could move to %q", id, b.Status, status)
	}
	if err != nil {
		return fmt.Errorf("booking: %w", err)
	}
	return nil
}

// Reopen records that a passed inspection must be repeated. The passed row
// is left untouched; a new failed rescrutineering row with the same slot
// parameters is created instead.
func (s *Service) Reopen(ctx context.Context, id uint) (*models.Booking, error) {
	orig, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking: %w", err)
	}
	if orig.Status != models.BookingPassed {
		return nil, invalid("status", "only passed bookings can be reopened; booking %d is %q", id, orig.Status)
	}
	reopened := &models.Booking{
		TeamID:            orig.TeamID,
		InspectionTypeID:  orig.InspectionTypeID,
		Date:              orig.Date,
		StartTime:         orig.StartTime,
		EndTime:           orig.EndTime,
		ResourceIndex:     orig.ResourceIndex,
		Status:            models.BookingFailed,
		IsRescrutineering: true,
		ReopenOf:          &orig.ID,
	}
	if err := s.repo.CreateBooking(ctx, reopened); err != nil {
		return nil, fmt.Errorf("booking: reopen %d: %w", id, err)
	}
	return reopened, nil
}

// load validates the request and reads the snapshot, retrying transient
// store failures.
func (s *Service) load(ctx context.Context, teamID, typeID uint, date string) (*snapshot, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, invalid("date", "%q is not YYYY-MM-DD", date)
	}

	var (
		team    *models.Team
		typ     *models.InspectionType
		catalog []models.InspectionType
		history []models.Booking
		day     []models.Booking
	)
	err := store.Retry(ctx, defaultReadAttempts, defaultReadBackoff, func() error {
		var err error
		if team, err = s.repo.GetTeam(ctx, teamID); err != nil {
			return err
		}
		if typ, err = s.repo.GetInspectionType(ctx, typeID); err != nil {
			return err
		}
		if catalog, err = s.repo.ListInspectionTypes(ctx, store.OrderBySortOrder); err != nil {
			return err
		}
		if history, err = s.repo.ListBookings(ctx, store.BookingFilter{TeamID: teamID}); err != nil {
			return err
		}
		day, err = s.repo.ListBookings(ctx, store.BookingFilter{Date: date, InspectionTypeID: typeID})
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid("selection", "%v", err)
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load snapshot: %w", err)
	}
	if !typ.Active {
		return nil, invalid("inspection type", "%s is not open for booking", typ.Name)
	}

	res := eligibility.Evaluate(team, history, catalog, *typ)
	if !res.Eligible {
		return nil, &EligibilityError{Reason: res.Reason}
	}

	var typeHistory []models.Booking
	for _, b := range history {
		if b.InspectionTypeID != typeID {
			continue
		}
		if b.Status == models.BookingUpcoming || b.Status == models.BookingOngoing {
			return nil, invalid("team", "team %d already holds booking %d for %s", teamID, b.ID, typ.Name)
		}
		typeHistory = append(typeHistory, b)
	}

	start, end := s.window(typ)
	slots, err := slot.Generate(start, end, typ.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("booking: %w", err)
	}
	candidates, err := allocate.Offer(allocate.Request{
		Type:        *typ,
		Date:        date,
		WindowStart: start,
		WindowEnd:   end,
		DayBookings: day,
		TeamHistory: typeHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("booking: %w", err)
	}

	return &snapshot{
		team:       team,
		typ:        typ,
		candidates: candidates,
		slots:      slots,
		hasFailed:  allocate.HasFailed(typeHistory, typeID),
		minStart:   allocate.MinStart(day),
	}, nil
}

func (s *Service) window(t *models.InspectionType) (string, string) {
	if t.WindowStart != "" && t.WindowEnd != "" {
		return t.WindowStart, t.WindowEnd
	}
	return s.opts.DayStart, s.opts.DayEnd
}

// isValidTransition checks whether a status transition is allowed.
func isValidTransition(from, to string) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
