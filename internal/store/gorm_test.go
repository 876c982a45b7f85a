package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zulandar/scrutineer/internal/db"
	"github.com/zulandar/scrutineer/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gormDB
}

func newBooking(team uint, start string, lane int) *models.Booking {
	return &models.Booking{
		TeamID:           team,
		InspectionTypeID: 1,
		Date:             "2026-08-04",
		StartTime:        start,
		EndTime:          "09:30",
		ResourceIndex:    lane,
		Status:           models.BookingUpcoming,
	}
}

func TestCreateBooking_ConflictOnSameLane(t *testing.T) {
	repo := NewGorm(testDB(t))
	ctx := context.Background()

	if err := repo.CreateBooking(ctx, newBooking(1, "09:00", 0)); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if err := repo.CreateBooking(ctx, newBooking(2, "09:00", 1)); err != nil {
		t.Fatalf("second lane: %v", err)
	}
	dup := newBooking(3, "09:00", 0)
	err := repo.CreateBooking(ctx, dup)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if dup.ID != 0 {
		t.Errorf("conflicting booking ID = %d, want 0", dup.ID)
	}

	all, err := repo.ListBookings(ctx, BookingFilter{Date: "2026-08-04"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d bookings, want 2 (conflict rolled back)", len(all))
	}
}

func TestUpdateBookingStatus_CancelReleasesLane(t *testing.T) {
	repo := NewGorm(testDB(t))
	ctx := context.Background()

	b := newBooking(1, "09:00", 0)
	if err := repo.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateBookingStatus(ctx, b.ID, models.BookingUpcoming, models.BookingCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := repo.CreateBooking(ctx, newBooking(2, "09:00", 0)); err != nil {
		t.Fatalf("rebook released lane: %v", err)
	}
}

func TestUpdateBookingStatus_NotFound(t *testing.T) {
	repo := NewGorm(testDB(t))
	err := repo.UpdateBookingStatus(context.Background(), 404, models.BookingOngoing, models.BookingPassed)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateBookingStatus_StaleFromStatus(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	ctx := context.Background()

	b := newBooking(1, "09:00", 0)
	b.Status = models.BookingOngoing
	if err := repo.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateBookingStatus(ctx, b.ID, models.BookingOngoing, models.BookingPassed); err != nil {
		t.Fatalf("pass: %v", err)
	}
	err := repo.UpdateBookingStatus(ctx, b.ID, models.BookingOngoing, models.BookingFailed)
	if !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("err = %v, want ErrStatusChanged", err)
	}
	if IsRetryable(err) {
		t.Error("ErrStatusChanged should not be retryable")
	}

	var got models.Booking
	if err := gormDB.First(&got, b.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != models.BookingPassed {
		t.Errorf("status = %q, want %q", got.Status, models.BookingPassed)
	}
}

func TestCreateBooking_ReopenSharesLane(t *testing.T) {
	repo := NewGorm(testDB(t))
	ctx := context.Background()

	orig := newBooking(1, "09:00", 0)
	if err := repo.CreateBooking(ctx, orig); err != nil {
		t.Fatal(err)
	}
	reopen := newBooking(1, "09:00", 0)
	reopen.Status = models.BookingFailed
	reopen.IsRescrutineering = true
	reopen.ReopenOf = &orig.ID
	if err := repo.CreateBooking(ctx, reopen); err != nil {
		t.Fatalf("reopen: %v", err)
	}
}

func TestListBookings_Filters(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	ctx := context.Background()

	rows := []models.Booking{
		{TeamID: 1, InspectionTypeID: 1, Date: "2026-08-04", StartTime: "10:00", EndTime: "10:30", Status: "upcoming"},
		{TeamID: 1, InspectionTypeID: 2, Date: "2026-08-04", StartTime: "09:00", EndTime: "09:30", Status: "upcoming"},
		{TeamID: 2, InspectionTypeID: 1, Date: "2026-08-05", StartTime: "08:00", EndTime: "08:30", Status: "upcoming"},
	}
	if err := gormDB.Create(&rows).Error; err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		f    BookingFilter
		want int
	}{
		{"all", BookingFilter{}, 3},
		{"date", BookingFilter{Date: "2026-08-04"}, 2},
		{"type", BookingFilter{InspectionTypeID: 1}, 2},
		{"team and type", BookingFilter{TeamID: 1, InspectionTypeID: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListBookings(ctx, tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d, want %d", len(got), tt.want)
			}
		})
	}

	day, _ := repo.ListBookings(ctx, BookingFilter{Date: "2026-08-04"})
	if day[0].StartTime != "09:00" {
		t.Errorf("bookings not ordered by start time: %+v", day)
	}
}

func TestApplyRunPenalty_WritesRunAndIncidents(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	ctx := context.Background()

	run := models.TimedRun{TeamID: 1, EventType: models.EventSkidpad, RawTime: 5.1, Status: models.RunValid}
	gormDB.Create(&run)
	inc := models.TrackIncident{TeamID: 1, EventType: models.EventSkidpad, IncidentType: models.IncidentDOO}
	gormDB.Create(&inc)

	final := 7.1
	if err := repo.ApplyRunPenalty(ctx, run.ID, RunUpdate{FinalTime: &final, Status: models.RunValid, Processed: true}, []uint{inc.ID}); err != nil {
		t.Fatalf("ApplyRunPenalty: %v", err)
	}

	var gotRun models.TimedRun
	gormDB.First(&gotRun, run.ID)
	if !gotRun.Processed || gotRun.FinalTime == nil || *gotRun.FinalTime != 7.1 {
		t.Errorf("run = %+v", gotRun)
	}
	var gotInc models.TrackIncident
	gormDB.First(&gotInc, inc.ID)
	if !gotInc.PenaltyApplied {
		t.Error("incident not marked")
	}
}

func TestUpdateTimedRun_NullFinalTime(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	prev := 4.0
	run := models.TimedRun{TeamID: 1, EventType: models.EventAcceleration, RawTime: 4.0, FinalTime: &prev, Status: models.RunValid}
	gormDB.Create(&run)

	if err := repo.UpdateTimedRun(context.Background(), run.ID, RunUpdate{Status: models.RunDSQ, Processed: true}); err != nil {
		t.Fatal(err)
	}
	var got models.TimedRun
	gormDB.First(&got, run.ID)
	if got.FinalTime != nil {
		t.Errorf("FinalTime = %v, want nil", *got.FinalTime)
	}
	if got.Status != models.RunDSQ {
		t.Errorf("Status = %q", got.Status)
	}
}

func TestMarkIncidentPenaltyApplied(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	inc := models.TrackIncident{TeamID: 1, EventType: models.EventAcceleration, IncidentType: "cone", Timestamp: time.Now()}
	if err := gormDB.Create(&inc).Error; err != nil {
		t.Fatal(err)
	}

	if err := repo.MarkIncidentPenaltyApplied(context.Background(), inc.ID); err != nil {
		t.Fatal(err)
	}
	var got models.TrackIncident
	if err := gormDB.First(&got, inc.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !got.PenaltyApplied {
		t.Error("PenaltyApplied = false, want true")
	}

	err := repo.MarkIncidentPenaltyApplied(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing incident err = %v, want ErrNotFound", err)
	}
}

func TestListTimedRuns_Filter(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	gormDB.Create(&[]models.TimedRun{
		{TeamID: 1, EventType: "skidpad", RawTime: 5, Status: models.RunValid},
		{TeamID: 1, EventType: "skidpad", RawTime: 5, Status: models.RunValid, Processed: true},
		{TeamID: 1, EventType: "skidpad", RawTime: 5, Status: models.RunDNF},
	})
	no := false
	got, err := repo.ListTimedRuns(context.Background(), RunFilter{Status: []string{models.RunValid}, Processed: &no})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %d runs, want 1", len(got))
	}
}

func TestListActivePenaltyRules(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	gormDB.Create(&[]models.PenaltyRule{
		{Name: "a", EventType: "autocross", IncidentType: "DOO", PenaltyType: "time_penalty", PenaltyValue: 2, Active: true},
		{Name: "b", EventType: "autocross", IncidentType: "OOC", PenaltyType: "time_penalty", PenaltyValue: 10, Active: false},
	})
	got, err := repo.ListActivePenaltyRules(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "a" {
		t.Errorf("got %+v", got)
	}
}

func TestListApprovedScores(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	gormDB.Create(&[]models.StaticScore{
		{TeamID: 1, Event: models.EventDesign, Score: 120, Approved: true},
		{TeamID: 1, Event: models.EventDesign, Score: 90, Approved: false},
		{TeamID: 2, Event: models.EventDesign, Score: 100, Approved: true},
		{TeamID: 1, Event: models.EventCost, Score: 70, Approved: true},
	})
	all, err := repo.ListApprovedScores(context.Background(), models.EventDesign, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all teams: got %d, want 2", len(all))
	}
	one, _ := repo.ListApprovedScores(context.Background(), models.EventDesign, 1)
	if len(one) != 1 || one[0].Score != 120 {
		t.Errorf("team 1: got %+v", one)
	}
}

func TestUpsertCompetitionResult_Replaces(t *testing.T) {
	repo := NewGorm(testDB(t))
	ctx := context.Background()

	if err := repo.UpsertCompetitionResult(ctx, &models.CompetitionResult{TeamID: 1, OverallTotal: 100, OverallRank: 2}); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertCompetitionResult(ctx, &models.CompetitionResult{TeamID: 1, OverallTotal: 250, OverallRank: 1}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.ListCompetitionResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].OverallTotal != 250 || got[0].OverallRank != 1 {
		t.Errorf("row = %+v", got[0])
	}
}

func TestJobLifecycle(t *testing.T) {
	gormDB := testDB(t)
	repo := NewGorm(gormDB)
	ctx := context.Background()

	job := &models.BatchJob{ID: "job-1", Kind: "results", StartedAt: time.Now()}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := repo.FinishJob(ctx, "job-1", 3, 1, "[7]", nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	var got models.BatchJob
	gormDB.First(&got, "id = ?", "job-1")
	if got.Status != JobPartial || got.Processed != 3 || got.FailedIDs != "[7]" || got.CompletedAt == nil {
		t.Errorf("job = %+v", got)
	}
	if err := repo.FinishJob(ctx, "missing", 0, 0, "[]", nil, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d; want success after 3", err, calls)
	}

	calls = 0
	err = Retry(ctx, 5, time.Millisecond, func() error {
		calls++
		return ErrConflict
	})
	if !errors.Is(err, ErrConflict) || calls != 1 {
		t.Errorf("conflict retried: err = %v, calls = %d", err, calls)
	}

	calls = 0
	err = Retry(ctx, 2, time.Millisecond, func() error {
		calls++
		return errors.New("still down")
	})
	if err == nil || calls != 2 {
		t.Errorf("exhausted: err = %v, calls = %d", err, calls)
	}
}
