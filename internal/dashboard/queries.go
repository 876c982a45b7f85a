package dashboard

import (
	"context"
	"time"

	"github.com/zulandar/scrutineer/internal/store"
)

// TypeRow is one inspection type for display.
type TypeRow struct {
	ID              uint     `json:"id"`
	Key             string   `json:"key"`
	Name            string   `json:"name"`
	DurationMinutes int      `json:"duration_minutes"`
	Lanes           int      `json:"lanes"`
	Requires        []string `json:"requires"`
	Active          bool     `json:"active"`
}

// TypeSummary returns the inspection catalog in display order.
func TypeSummary(ctx context.Context, repo store.Repository) ([]TypeRow, error) {
	types, err := repo.ListInspectionTypes(ctx, store.OrderBySortOrder)
	if err != nil {
		return nil, err
	}
	rows := make([]TypeRow, len(types))
	for i, t := range types {
		rows[i] = TypeRow{
			ID:              t.ID,
			Key:             t.Key,
			Name:            t.Name,
			DurationMinutes: t.DurationMinutes,
			Lanes:           t.ConcurrentSlots,
			Requires:        t.PrerequisiteKeys(),
			Active:          t.Active,
		}
	}
	return rows, nil
}

// StandingRow is one team's result joined with its name.
type StandingRow struct {
	Rank          int       `json:"rank"`
	TeamID        uint      `json:"team_id"`
	Team          string    `json:"team"`
	VehicleNumber string    `json:"vehicle_number"`
	Static        float64   `json:"static"`
	Dynamic       float64   `json:"dynamic"`
	Penalties     float64   `json:"penalties"`
	Total         float64   `json:"total"`
	CalculatedAt  time.Time `json:"calculated_at"`
}

// Standings returns the persisted results ordered by rank.
func Standings(ctx context.Context, repo store.Repository) ([]StandingRow, error) {
	results, err := repo.ListCompetitionResults(ctx)
	if err != nil {
		return nil, err
	}
	teams, err := repo.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint][2]string, len(teams))
	for _, t := range teams {
		names[t.ID] = [2]string{t.Name, t.VehicleNumber}
	}

	rows := make([]StandingRow, len(results))
	for i, r := range results {
		n := names[r.TeamID]
		rows[i] = StandingRow{
			Rank:          r.OverallRank,
			TeamID:        r.TeamID,
			Team:          n[0],
			VehicleNumber: n[1],
			Static:        r.StaticPoints,
			Dynamic:       r.DynamicPoints,
			Penalties:     r.Penalties,
			Total:         r.OverallTotal,
			CalculatedAt:  r.CalculatedAt,
		}
	}
	return rows, nil
}
