package slot

import (
	"strings"
	"testing"
)

func TestGenerate_FullDay(t *testing.T) {
	slots, err := Generate("08:00", "18:00", 30)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(slots) != 20 {
		t.Fatalf("len = %d, want 20", len(slots))
	}
	if slots[0] != "08:00" {
		t.Errorf("first = %q, want 08:00", slots[0])
	}
	if slots[19] != "17:30" {
		t.Errorf("last = %q, want 17:30", slots[19])
	}
	for i := 1; i < len(slots); i++ {
		prev, _ := Parse(slots[i-1])
		cur, _ := Parse(slots[i])
		if cur-prev != 30 {
			t.Errorf("slots[%d]=%s -> slots[%d]=%s not 30 minutes apart", i-1, slots[i-1], i, slots[i])
		}
	}
}

func TestGenerate_PartialTailDropped(t *testing.T) {
	// 08:00 + 3*25 = 09:15; a fourth slot would end at 09:40 > 09:30.
	slots, err := Generate("08:00", "09:30", 25)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{"08:00", "08:25", "08:50"}
	if strings.Join(slots, ",") != strings.Join(want, ",") {
		t.Errorf("slots = %v, want %v", slots, want)
	}
}

func TestGenerate_DurationLongerThanWindow(t *testing.T) {
	slots, err := Generate("08:00", "08:20", 30)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("slots = %v, want none", slots)
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		duration   int
		want       string
	}{
		{"inverted", "18:00", "08:00", 30, "must be before"},
		{"equal", "08:00", "08:00", 30, "must be before"},
		{"zero duration", "08:00", "18:00", 0, "duration must be positive"},
		{"negative duration", "08:00", "18:00", -5, "duration must be positive"},
		{"bad start", "8:00", "18:00", 30, "invalid time"},
		{"bad end", "08:00", "25:00", 30, "invalid time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.start, tt.end, tt.duration)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	got, err := Add("09:45", 30)
	if err != nil {
		t.Fatal(err)
	}
	if got != "10:15" {
		t.Errorf("Add = %q, want 10:15", got)
	}
}
