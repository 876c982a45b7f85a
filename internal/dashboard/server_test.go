package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrutineer/internal/board"
	"github.com/zulandar/scrutineer/internal/db"
	"github.com/zulandar/scrutineer/internal/models"
	"github.com/zulandar/scrutineer/internal/store"
)

func testRepo(t *testing.T) *store.Gorm {
	t.Helper()
	gormDB, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	for _, v := range []interface{}{
		&models.InspectionType{ID: 1, Key: "accumulator", Name: "Accumulator", DurationMinutes: 30, ConcurrentSlots: 2, SortOrder: 1, Active: true},
		&models.InspectionType{ID: 2, Key: "mechanical", Name: "Mechanical", DurationMinutes: 60, ConcurrentSlots: 1, SortOrder: 2, Active: true},
		&models.InspectionPrereq{TypeKey: "mechanical", RequiresKey: "accumulator"},
		&models.Team{ID: 1, Name: "Polimi", VehicleNumber: "42"},
		&models.Team{ID: 2, Name: "Delft", VehicleNumber: "7"},
		&models.Booking{TeamID: 1, InspectionTypeID: 1, Date: "2026-08-05", StartTime: "09:00", EndTime: "09:30", Status: models.BookingUpcoming},
		&models.CompetitionResult{TeamID: 2, OverallTotal: 400, OverallRank: 1},
		&models.CompetitionResult{TeamID: 1, OverallTotal: 300, OverallRank: 2},
	} {
		if err := gormDB.Create(v).Error; err != nil {
			t.Fatalf("seed %T: %v", v, err)
		}
	}
	return store.NewGorm(gormDB)
}

func testRouter(t *testing.T, ref *board.Refresher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return newRouter(StartOpts{Repo: testRepo(t), Board: ref})
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestStart_NilRepo(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil repository")
	}
	if !strings.Contains(err.Error(), "repository is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "repository is required")
	}
}

func TestHealthz(t *testing.T) {
	w := get(t, testRouter(t, nil), "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestTypes(t *testing.T) {
	w := get(t, testRouter(t, nil), "/api/types")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var rows []TypeRow
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 || rows[0].Key != "accumulator" {
		t.Fatalf("rows = %+v", rows)
	}
	if len(rows[1].Requires) != 1 || rows[1].Requires[0] != "accumulator" {
		t.Errorf("mechanical requires = %v", rows[1].Requires)
	}
}

func TestBoard_ForDate(t *testing.T) {
	w := get(t, testRouter(t, nil), "/api/board?date=2026-08-05")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var snap board.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Date != "2026-08-05" || len(snap.Columns) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Columns[0].Entries) != 1 || snap.Columns[0].Entries[0].StartTime != "09:00" {
		t.Errorf("accumulator entries = %+v", snap.Columns[0].Entries)
	}
}

func TestBoard_BadDate(t *testing.T) {
	w := get(t, testRouter(t, nil), "/api/board?date=05/08/2026")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBoard_ServesRefresherSnapshot(t *testing.T) {
	repo := testRepo(t)
	ref := board.NewRefresher(repo, time.Hour, "2026-08-05")
	if _, err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	gin.SetMode(gin.TestMode)
	router := newRouter(StartOpts{Repo: repo, Board: ref})

	w := get(t, router, "/api/board")
	var snap board.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Date != "2026-08-05" {
		t.Errorf("Date = %q, want the refresher's date", snap.Date)
	}
}

func TestResults(t *testing.T) {
	w := get(t, testRouter(t, nil), "/api/results")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var rows []StandingRow
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Rank != 1 || rows[0].Team != "Delft" || rows[0].VehicleNumber != "7" {
		t.Errorf("first row = %+v", rows[0])
	}
}

func TestSSE_NoRefresher(t *testing.T) {
	w := get(t, testRouter(t, nil), "/api/events")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
	if !strings.Contains(w.Body.String(), "event: connected") {
		t.Errorf("body = %q, want connected event", w.Body.String())
	}
}

func TestSSE_StreamsBoard(t *testing.T) {
	repo := testRepo(t)
	ref := board.NewRefresher(repo, time.Hour, "2026-08-05")
	if _, err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	gin.SetMode(gin.TestMode)
	router := newRouter(StartOpts{Repo: repo, Board: ref})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	router.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "event: board") {
		t.Fatalf("body = %q, want a board event", body)
	}
	if !strings.Contains(body, `"date":"2026-08-05"`) {
		t.Errorf("board event missing date: %q", body)
	}
}
