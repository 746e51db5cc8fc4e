package computation

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrEmptySelection = errors.New("select at least one computation")
	ErrRunInProgress  = errors.New("a computation is already running")
)

// DefaultLatency is the simulated processing time of one run
const DefaultLatency = 1500 * time.Millisecond

// Status is the runner lifecycle
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	default:
		return "idle"
	}
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ResultSet maps a result key to its displayed value
type ResultSet map[string]string

// Runner turns a selection into a fresh ResultSet after a simulated latency.
// Only one run may be in progress at a time.
type Runner struct {
	catalog  *Catalog
	strategy Strategy
	latency  time.Duration

	mu     sync.Mutex
	status Status
}

// NewRunner creates a runner. A nil strategy uses a time-seeded RandomStrategy.
func NewRunner(catalog *Catalog, strategy Strategy, latency time.Duration) *Runner {
	if strategy == nil {
		strategy = NewRandomStrategy(0)
	}
	return &Runner{catalog: catalog, strategy: strategy, latency: latency}
}

// Status returns the current lifecycle state
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Start claims the runner for one run. Callers that get nil must call Finish.
func (r *Runner) Start(selected []string) error {
	if len(selected) == 0 {
		return ErrEmptySelection
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusRunning {
		return ErrRunInProgress
	}
	r.status = StatusRunning
	return nil
}

// Finish waits out the simulated latency, then computes a brand-new result set.
// On cancellation the runner returns to idle and ctx.Err() is returned.
func (r *Runner) Finish(ctx context.Context, selected []string) (ResultSet, error) {
	timer := time.NewTimer(r.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		r.setStatus(StatusIdle)
		return nil, ctx.Err()
	}

	results := r.Compute(selected)
	r.setStatus(StatusDone)
	return results, nil
}

// Run is Start followed by Finish
func (r *Runner) Run(ctx context.Context, selected []string) (ResultSet, error) {
	if err := r.Start(selected); err != nil {
		return nil, err
	}
	return r.Finish(ctx, selected)
}

// Compute builds a result set without latency. Items are visited in catalog order;
// when several selected items share a key only the first is computed.
func (r *Runner) Compute(selected []string) ResultSet {
	wanted := make(map[string]bool, len(selected))
	for _, name := range selected {
		wanted[name] = true
	}

	results := make(ResultSet)
	for _, cat := range r.catalog.categories {
		for _, item := range cat.Items {
			if !wanted[item.Name] {
				continue
			}
			if _, seen := results[item.Key]; seen {
				continue
			}
			results[item.Key] = r.strategy.Compute(item)
		}
	}
	return results
}

// Reset returns a finished runner to idle. A running runner is left alone.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusDone {
		r.status = StatusIdle
	}
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}
