package board

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule fires a job at each time matched by a cron expression.
type Schedule struct {
	expr  string
	sched cron.Schedule
	job   func(ctx context.Context) error
	now   func() time.Time
}

// NewSchedule parses expr and binds job to it.
func NewSchedule(expr string, job func(ctx context.Context) error) (*Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("board: parse cron %q: %w", expr, err)
	}
	return &Schedule{expr: expr, sched: sched, job: job, now: time.Now}, nil
}

// Next returns the first fire time after from.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.sched.Next(from)
}

// Run blocks, running the job at each fire time until ctx is cancelled.
// A failing job is logged and the schedule continues.
func (s *Schedule) Run(ctx context.Context) {
	for {
		d := s.Next(s.now()).Sub(s.now())
		if d < 0 {
			d = 0
		}
		sleepWithContext(ctx, d)
		if ctx.Err() != nil {
			return
		}
		log.Printf("board: cron %q fired", s.expr)
		if err := s.job(ctx); err != nil {
			log.Printf("board: cron %q: %v", s.expr, err)
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
