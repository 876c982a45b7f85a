// Package penalty applies track incidents to timed runs according to the
// active penalty rules.
package penalty

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zulandar/scrutineer/internal/batch"
	"github.com/zulandar/scrutineer/internal/models"
	"github.com/zulandar/scrutineer/internal/store"
)

// JobKind identifies penalty runs in the batch audit trail.
const JobKind = "penalties"

// Outcome is the computed result for one run.
type Outcome struct {
	Update      store.RunUpdate
	Penalty     float64 // seconds added; zero for DSQ
	IncidentIDs []uint  // incidents consumed by the run
}

// Evaluate computes a run's outcome. Incidents for the same team and event
// inside the run's time window are matched, in order, against the first
// active rule for their (event, incident) pair. A disqualification stops
// further accumulation. Every matched incident is consumed whether or not a
// rule applied.
func Evaluate(run models.TimedRun, incidents []models.TrackIncident, rules []models.PenaltyRule) Outcome {
	var (
		out  Outcome
		acc  float64
		dsq  bool
		seen []uint
	)
	for _, inc := range incidents {
		if !inWindow(run, inc) {
			continue
		}
		seen = append(seen, inc.ID)
		if dsq {
			continue
		}
		rule, ok := firstMatch(rules, run.EventType, inc.IncidentType)
		if !ok {
			continue
		}
		switch rule.PenaltyType {
		case models.PenaltyTime:
			acc += rule.PenaltyValue
		case models.PenaltyPercentage:
			acc += run.RawTime * rule.PenaltyValue / 100
		case models.PenaltyDisqualify:
			dsq = true
		}
	}

	out.IncidentIDs = seen
	if dsq {
		out.Update = store.RunUpdate{FinalTime: nil, Status: models.RunDSQ, Processed: true}
		return out
	}
	final := run.RawTime + acc
	out.Penalty = acc
	out.Update = store.RunUpdate{FinalTime: &final, Status: run.Status, Processed: true}
	return out
}

func inWindow(run models.TimedRun, inc models.TrackIncident) bool {
	if inc.TeamID != run.TeamID || inc.EventType != run.EventType {
		return false
	}
	return !inc.Timestamp.Before(run.StartedAt) && !inc.Timestamp.After(run.FinishedAt)
}

// firstMatch returns the first rule, in the given order, for the pair. Later
// rules for the same pair are never consulted.
func firstMatch(rules []models.PenaltyRule, eventType, incidentType string) (models.PenaltyRule, bool) {
	for _, r := range rules {
		if r.Active && r.EventType == eventType && r.IncidentType == incidentType {
			return r, true
		}
	}
	return models.PenaltyRule{}, false
}

// Engine runs Evaluate over every unprocessed valid run and persists the
// outcomes.
type Engine struct {
	repo   store.Repository
	runner *batch.Runner
}

// NewEngine builds an Engine.
func NewEngine(repo store.Repository, runner *batch.Runner) *Engine {
	return &Engine{repo: repo, runner: runner}
}

// Apply processes all pending runs. Each run is written independently; runs
// that fail are listed in the report and left unprocessed for the next call.
func (e *Engine) Apply(ctx context.Context) (*batch.Report, error) {
	return e.runner.Run(ctx, JobKind, e.prepare)
}

func (e *Engine) prepare(ctx context.Context) ([]uint, batch.ProcessFunc, error) {
	unprocessed := false
	runs, err := e.repo.ListTimedRuns(ctx, store.RunFilter{Status: []string{models.RunValid}, Processed: &unprocessed})
	if err != nil {
		return nil, nil, err
	}
	incidents, err := e.repo.ListIncidents(ctx, store.IncidentFilter{})
	if err != nil {
		return nil, nil, err
	}
	rules, err := e.repo.ListActivePenaltyRules(ctx)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[uint]models.TimedRun, len(runs))
	ids := make([]uint, 0, len(runs))
	for _, r := range runs {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	process := func(ctx context.Context, id uint) error {
		run, ok := byID[id]
		if !ok {
			return fmt.Errorf("penalty: run %d not in snapshot", id)
		}
		out := Evaluate(run, incidents, rules)
		err := e.repo.ApplyRunPenalty(ctx, run.ID, out.Update, out.IncidentIDs)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("penalty: run %d already processed elsewhere, skipping", run.ID)
			return nil
		}
		return err
	}
	return ids, process, nil
}
