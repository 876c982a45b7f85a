// Package eligibility decides whether a team may book an inspection type
// given its booking history and the prerequisite graph.
package eligibility

import (
	"fmt"
	"sort"

	"github.com/zulandar/scrutineer/internal/models"
)

// Reasons reported for ineligible teams.
const (
	ReasonLoading       = "Loading team data..."
	ReasonAlreadyPassed = "Already passed"
)

// Result is the outcome of an eligibility check.
type Result struct {
	Eligible bool
	Reason   string
}

// Evaluate checks target against the team's history. A nil team means the
// caller has not loaded the team yet, which is reported as a transient
// ineligible state rather than an error.
func Evaluate(team *models.Team, history []models.Booking, catalog []models.InspectionType, target models.InspectionType) Result {
	if team == nil {
		return Result{Reason: ReasonLoading}
	}

	byID := make(map[uint]models.InspectionType, len(catalog))
	for _, it := range catalog {
		byID[it.ID] = it
	}

	passed := make(map[string]bool)
	for _, b := range history {
		if b.TeamID != team.ID || b.Status != models.BookingPassed {
			continue
		}
		if it, ok := byID[b.InspectionTypeID]; ok {
			passed[it.Key] = true
		}
	}

	if passed[target.Key] {
		return Result{Reason: ReasonAlreadyPassed}
	}

	if missing, ok := firstMissing(target, ordered(catalog), passed); ok {
		return Result{Reason: fmt.Sprintf("Requires %s to be passed", missing)}
	}
	return Result{Eligible: true}
}

// firstMissing walks the target's prerequisites in catalog order and returns
// the display name of the first one not yet passed. Prerequisite keys missing
// from the catalog can never be passed and are reported by key afterwards.
func firstMissing(target models.InspectionType, catalog []models.InspectionType, passed map[string]bool) (string, bool) {
	required := make(map[string]bool)
	for _, k := range target.PrerequisiteKeys() {
		required[k] = true
	}
	if len(required) == 0 {
		return "", false
	}

	for _, it := range catalog {
		if !required[it.Key] {
			continue
		}
		delete(required, it.Key)
		if !passed[it.Key] {
			return it.Name, true
		}
	}
	for _, k := range target.PrerequisiteKeys() {
		if required[k] && !passed[k] {
			return k, true
		}
	}
	return "", false
}

// ordered returns the catalog sorted by sort_order, then id.
func ordered(catalog []models.InspectionType) []models.InspectionType {
	out := make([]models.InspectionType, len(catalog))
	copy(out, catalog)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}
