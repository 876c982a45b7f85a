// Package results folds approved static scores, penalized run times and
// applied incidents into one ranked standing per team.
package results

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zulandar/scrutineer/internal/batch"
	"github.com/zulandar/scrutineer/internal/models"
	"github.com/zulandar/scrutineer/internal/store"
)

// JobKind identifies results recalculations in the batch audit trail.
const JobKind = "results"

// Per-incident weights folded into the dynamic total.
const (
	weightDOO   = 2.0
	weightOther = 0.2
)

// StaticEvents are the judged events summed into static points.
var StaticEvents = []string{models.EventDesign, models.EventBusinessPlan, models.EventCost}

// DynamicEvents are the timed events, in display order.
var DynamicEvents = []string{models.EventAcceleration, models.EventSkidpad, models.EventAutocross, models.EventEndurance}

// Points converts a best time to event points. Unknown events score zero.
func Points(event string, t float64) float64 {
	var p float64
	switch event {
	case models.EventAcceleration:
		p = 100 - t*10
	case models.EventSkidpad:
		p = 100 - t*5
	case models.EventAutocross:
		p = 150 - t*2
	case models.EventEndurance:
		p = 250 - t*0.1
	}
	return math.Max(0, p)
}

// IncidentWeight is the fixed deduction for one applied incident.
func IncidentWeight(incidentType string) float64 {
	if incidentType == models.IncidentDOO {
		return weightDOO
	}
	return weightOther
}

// Input is the read snapshot a recalculation works from.
type Input struct {
	Teams     []models.Team
	Scores    []models.StaticScore   // approved only
	Runs      []models.TimedRun      // processed only
	Incidents []models.TrackIncident // penalty_applied only
}

// Compute derives and ranks one result per team. The output is ordered by
// rank. Equal totals are broken by static points, then by team id.
func Compute(in Input, now time.Time) []models.CompetitionResult {
	static := latestScores(in.Scores)
	best := bestTimes(in.Runs)
	penalties := make(map[uint]float64)
	for _, inc := range in.Incidents {
		if inc.PenaltyApplied {
			penalties[inc.TeamID] += IncidentWeight(inc.IncidentType)
		}
	}

	out := make([]models.CompetitionResult, 0, len(in.Teams))
	for _, team := range in.Teams {
		r := models.CompetitionResult{TeamID: team.ID, CalculatedAt: now}
		s := static[team.ID]
		r.DesignScore = s[models.EventDesign]
		r.BusinessPlanScore = s[models.EventBusinessPlan]
		r.CostScore = s[models.EventCost]
		r.StaticPoints = r.DesignScore + r.BusinessPlanScore + r.CostScore

		times := best[team.ID]
		var sum float64
		for _, ev := range DynamicEvents {
			t, ok := times[ev]
			if !ok {
				continue
			}
			pts := Points(ev, t)
			sum += pts
			tt := t
			switch ev {
			case models.EventAcceleration:
				r.AccelerationTime, r.AccelerationPoints = &tt, pts
			case models.EventSkidpad:
				r.SkidpadTime, r.SkidpadPoints = &tt, pts
			case models.EventAutocross:
				r.AutocrossTime, r.AutocrossPoints = &tt, pts
			case models.EventEndurance:
				r.EnduranceTime, r.EndurancePoints = &tt, pts
			}
		}
		r.Penalties = penalties[team.ID]
		r.DynamicPoints = math.Max(0, sum-r.Penalties)
		r.OverallTotal = r.StaticPoints + r.DynamicPoints
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.OverallTotal != b.OverallTotal {
			return a.OverallTotal > b.OverallTotal
		}
		if a.StaticPoints != b.StaticPoints {
			return a.StaticPoints > b.StaticPoints
		}
		return a.TeamID < b.TeamID
	})
	for i := range out {
		out[i].OverallRank = i + 1
	}
	return out
}

// latestScores keeps the most recent approved score per (team, event).
// Scores arrive oldest first.
func latestScores(scores []models.StaticScore) map[uint]map[string]float64 {
	m := make(map[uint]map[string]float64)
	for _, s := range scores {
		if !s.Approved {
			continue
		}
		if m[s.TeamID] == nil {
			m[s.TeamID] = make(map[string]float64)
		}
		m[s.TeamID][s.Event] = s.Score
	}
	return m
}

// bestTimes returns the lowest final time per (team, event) among processed
// valid runs.
func bestTimes(runs []models.TimedRun) map[uint]map[string]float64 {
	m := make(map[uint]map[string]float64)
	for _, r := range runs {
		if !r.Processed || r.Status != models.RunValid || r.FinalTime == nil {
			continue
		}
		if m[r.TeamID] == nil {
			m[r.TeamID] = make(map[string]float64)
		}
		if cur, ok := m[r.TeamID][r.EventType]; !ok || *r.FinalTime < cur {
			m[r.TeamID][r.EventType] = *r.FinalTime
		}
	}
	return m
}

// Aggregator recomputes and persists standings.
type Aggregator struct {
	repo   store.Repository
	runner *batch.Runner
	now    func() time.Time
}

// NewAggregator builds an Aggregator.
func NewAggregator(repo store.Repository, runner *batch.Runner) *Aggregator {
	return &Aggregator{repo: repo, runner: runner, now: time.Now}
}

// Recalculate rebuilds every team's result row. Ranks are computed over the
// full snapshot before any write, and each team's row is upserted on its
// own; failures are reported by team id.
func (a *Aggregator) Recalculate(ctx context.Context) (*batch.Report, error) {
	return a.runner.Run(ctx, JobKind, a.prepare)
}

// Standings returns the persisted results ordered by rank.
func (a *Aggregator) Standings(ctx context.Context) ([]models.CompetitionResult, error) {
	return a.repo.ListCompetitionResults(ctx)
}

func (a *Aggregator) prepare(ctx context.Context) ([]uint, batch.ProcessFunc, error) {
	in, err := a.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	rows := Compute(in, a.now())

	byTeam := make(map[uint]models.CompetitionResult, len(rows))
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		byTeam[r.TeamID] = r
		ids = append(ids, r.TeamID)
	}

	process := func(ctx context.Context, teamID uint) error {
		row, ok := byTeam[teamID]
		if !ok {
			return fmt.Errorf("results: team %d not in snapshot", teamID)
		}
		return a.repo.UpsertCompetitionResult(ctx, &row)
	}
	return ids, process, nil
}

func (a *Aggregator) snapshot(ctx context.Context) (Input, error) {
	var in Input
	var err error
	if in.Teams, err = a.repo.ListTeams(ctx); err != nil {
		return in, err
	}
	for _, ev := range StaticEvents {
		scores, err := a.repo.ListApprovedScores(ctx, ev, 0)
		if err != nil {
			return in, err
		}
		in.Scores = append(in.Scores, scores...)
	}
	processed := true
	if in.Runs, err = a.repo.ListTimedRuns(ctx, store.RunFilter{Status: []string{models.RunValid}, Processed: &processed}); err != nil {
		return in, err
	}
	applied := true
	if in.Incidents, err = a.repo.ListIncidents(ctx, store.IncidentFilter{PenaltyApplied: &applied}); err != nil {
		return in, err
	}
	return in, nil
}
