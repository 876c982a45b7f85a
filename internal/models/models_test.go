package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestInspectionType_Fields(t *testing.T) {
	typ := reflect.TypeOf(InspectionType{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Key", "uniqueIndex")
	assertGormTag(t, typ, "Key", "size:64")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "ConcurrentSlots", "default:1")
	assertGormTag(t, typ, "SortOrder", "index")
	assertGormTag(t, typ, "WindowStart", "size:5")
	assertGormTag(t, typ, "Prereqs", "foreignKey:TypeKey")
	assertGormTag(t, typ, "Prereqs", "references:Key")

	assertFieldType(t, typ, "Active", "bool")
	assertFieldType(t, typ, "Prereqs", "[]models.InspectionPrereq")

	// A default tag on Active would turn an explicit false into true on insert.
	if tag := gormTag(t, typ, "Active"); strings.Contains(tag, "default") {
		t.Errorf("InspectionType.Active gorm tag = %q, must not carry a default", tag)
	}
}

func TestInspectionPrereq_Fields(t *testing.T) {
	typ := reflect.TypeOf(InspectionPrereq{})

	assertGormTag(t, typ, "TypeKey", "primaryKey")
	assertGormTag(t, typ, "RequiresKey", "primaryKey")
}

func TestInspectionType_PrerequisiteKeys(t *testing.T) {
	it := InspectionType{Key: "brake", Prereqs: []InspectionPrereq{
		{TypeKey: "brake", RequiresKey: "mechanical"},
		{TypeKey: "brake", RequiresKey: "electrical"},
	}}
	got := it.PrerequisiteKeys()
	if len(got) != 2 || got[0] != "mechanical" || got[1] != "electrical" {
		t.Errorf("PrerequisiteKeys = %v", got)
	}
	if keys := (InspectionType{}).PrerequisiteKeys(); keys == nil || len(keys) != 0 {
		t.Errorf("no prerequisites = %#v, want empty non-nil", keys)
	}
}

func TestBooking_Fields(t *testing.T) {
	typ := reflect.TypeOf(Booking{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "InspectionTypeID", "index:idx_booking_day")
	assertGormTag(t, typ, "Date", "index:idx_booking_day")
	assertGormTag(t, typ, "Date", "size:10")
	assertGormTag(t, typ, "StartTime", "size:5")
	assertGormTag(t, typ, "Status", "default:upcoming")
	assertGormTag(t, typ, "Status", "index")

	assertFieldType(t, typ, "ResourceIndex", "int")
	assertFieldType(t, typ, "IsRescrutineering", "bool")
	assertFieldType(t, typ, "ReopenOf", "*uint")
}

func TestLaneClaim_Fields(t *testing.T) {
	typ := reflect.TypeOf(LaneClaim{})

	for _, f := range []string{"InspectionTypeID", "Date", "StartTime", "ResourceIndex"} {
		assertGormTag(t, typ, f, "primaryKey")
	}
	assertGormTag(t, typ, "InspectionTypeID", "autoIncrement:false")
	assertGormTag(t, typ, "ResourceIndex", "autoIncrement:false")
	assertGormTag(t, typ, "BookingID", "uniqueIndex")
}

func TestStaticScore_Fields(t *testing.T) {
	typ := reflect.TypeOf(StaticScore{})

	assertGormTag(t, typ, "TeamID", "index:idx_score_team_event")
	assertGormTag(t, typ, "Event", "index:idx_score_team_event")
	assertFieldType(t, typ, "Score", "float64")
	assertFieldType(t, typ, "Approved", "bool")
}

func TestTimedRun_Fields(t *testing.T) {
	typ := reflect.TypeOf(TimedRun{})

	assertGormTag(t, typ, "Status", "default:valid")
	assertGormTag(t, typ, "Processed", "index")
	assertFieldType(t, typ, "RawTime", "float64")
	assertFieldType(t, typ, "FinalTime", "*float64")
	assertFieldType(t, typ, "StartedAt", "time.Time")
	assertFieldType(t, typ, "FinishedAt", "time.Time")
}

func TestTrackIncident_Fields(t *testing.T) {
	typ := reflect.TypeOf(TrackIncident{})

	assertGormTag(t, typ, "TeamID", "index:idx_incident_team_event")
	assertGormTag(t, typ, "EventType", "index:idx_incident_team_event")
	assertFieldType(t, typ, "PenaltyApplied", "bool")
	assertFieldType(t, typ, "Timestamp", "time.Time")
}

func TestPenaltyRule_Fields(t *testing.T) {
	typ := reflect.TypeOf(PenaltyRule{})

	assertGormTag(t, typ, "Name", "uniqueIndex")
	assertGormTag(t, typ, "EventType", "index:idx_rule_match")
	assertGormTag(t, typ, "IncidentType", "index:idx_rule_match")
	assertFieldType(t, typ, "PenaltyValue", "float64")
	assertFieldType(t, typ, "MaxCount", "int")
	if tag := gormTag(t, typ, "Active"); strings.Contains(tag, "default") {
		t.Errorf("PenaltyRule.Active gorm tag = %q, must not carry a default", tag)
	}
}

func TestCompetitionResult_Fields(t *testing.T) {
	typ := reflect.TypeOf(CompetitionResult{})

	assertGormTag(t, typ, "TeamID", "uniqueIndex")
	assertGormTag(t, typ, "OverallTotal", "index")
	for _, f := range []string{"AccelerationTime", "SkidpadTime", "AutocrossTime", "EnduranceTime"} {
		assertFieldType(t, typ, f, "*float64")
	}
	assertFieldType(t, typ, "OverallRank", "int")
	assertFieldType(t, typ, "CalculatedAt", "time.Time")
}

func TestBatchJob_Fields(t *testing.T) {
	typ := reflect.TypeOf(BatchJob{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "Kind", "index")
	assertGormTag(t, typ, "Status", "default:running")
	assertGormTag(t, typ, "FailedIDs", "type:text")
	assertGormTag(t, typ, "ErrorMessage", "type:text")

	assertFieldType(t, typ, "ID", "string")
	assertFieldType(t, typ, "CompletedAt", "*time.Time")
}
