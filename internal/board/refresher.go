package board

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// ErrRunning is returned by Start when the refresher is already running.
var ErrRunning = errors.New("board: refresher already running")

// Refresher periodically reloads the board and publishes each snapshot to
// its subscribers. It has no package-level state; callers own its lifecycle.
type Refresher struct {
	src      Source
	interval time.Duration
	date     string // empty means the current local date
	now      func() time.Time

	mu     sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	latest *Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a Refresher for date. An empty date follows the
// clock, so a long-running refresher rolls over at midnight.
func NewRefresher(src Source, interval time.Duration, date string) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Refresher{
		src:      src,
		interval: interval,
		date:     date,
		now:      time.Now,
		subs:     make(map[int]chan Snapshot),
	}
}

// Start loads the board once and then every interval until ctx is cancelled
// or Stop is called.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Printf("board: refresh: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for it to exit. It is safe to call on a
// refresher that was never started.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh loads the board now and publishes it.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	at := r.now()
	date := r.date
	if date == "" {
		date = at.Format(dateLayout)
	}
	snap, err := Load(ctx, r.src, date, at)
	if err != nil {
		return Snapshot{}, err
	}
	r.publish(snap)
	return snap, nil
}

// Latest returns the most recent snapshot, if any.
func (r *Refresher) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return Snapshot{}, false
	}
	return *r.latest, true
}

// Subscribe returns a channel receiving each new snapshot and a func that
// unsubscribes. Slow subscribers only ever see the newest snapshot.
func (r *Refresher) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	if r.latest != nil {
		ch <- *r.latest
	}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

func (r *Refresher) publish(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = &snap
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
