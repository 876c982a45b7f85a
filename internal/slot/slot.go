// Package slot generates the candidate start-time grid for an inspection
// window. Times are same-day "HH:MM" strings.
package slot

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// Parse converts an "HH:MM" string to minutes since midnight.
func Parse(s string) (int, error) {
	if len(s) != len(clockLayout) {
		return 0, fmt.Errorf("slot: invalid time %q (want HH:MM)", s)
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("slot: invalid time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Format converts minutes since midnight to "HH:MM".
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Add returns s shifted by the given number of minutes.
func Add(s string, minutes int) (string, error) {
	m, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(m + minutes), nil
}

// Generate returns the start times from start, spaced duration minutes
// apart, stopping once a slot would run past end.
func Generate(start, end string, duration int) ([]string, error) {
	from, err := Parse(start)
	if err != nil {
		return nil, err
	}
	to, err := Parse(end)
	if err != nil {
		return nil, err
	}
	if from >= to {
		return nil, fmt.Errorf("slot: window start %s must be before end %s", start, end)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("slot: duration must be positive, got %d", duration)
	}

	var slots []string
	for cur := from; cur+duration <= to; cur += duration {
		slots = append(slots, Format(cur))
	}
	return slots, nil
}
