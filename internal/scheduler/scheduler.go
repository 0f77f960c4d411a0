// Package scheduler drives the booking engine's time-based transitions on
// a fixed interval.  Every step is idempotent, so a failed step is logged
// and simply retried on the next tick.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Engine is the set of sweeps the scheduler runs, in tick order.
type Engine interface {
	AdvanceStatuses(ctx context.Context) (int, error)
	ExpireHolds(ctx context.Context) (int, error)
	ExpireOffers(ctx context.Context) (int, error)
	DrainSeatEvents(ctx context.Context) (int, error)
	Reconcile(ctx context.Context) (int, error)
}

// Report summarises one tick.
type Report struct {
	StatusChanges int
	HoldsExpired  int
	OffersExpired int
	Offers        int
	Reconciled    int
	Failed        []string
}

// Scheduler polls the engine.  Ticks never overlap.
type Scheduler struct {
	Engine   Engine
	Interval time.Duration
	// ReconcileEvery runs the reconciliation pass every N ticks; zero
	// disables it.
	ReconcileEvery int

	mu    sync.Mutex
	ticks int
}

// Run ticks immediately and then every Interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	// kick immediately
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep: status transitions, hold expiry, offer expiry and
// the seat-freed drain, then reconciliation when due.
func (s *Scheduler) Tick(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++

	var r Report
	step := func(name string, fn func(context.Context) (int, error), out *int) {
		if ctx.Err() != nil {
			return
		}
		n, err := fn(ctx)
		if err != nil {
			log.Printf("scheduler: %s failed: %v", name, err)
			r.Failed = append(r.Failed, name)
			return
		}
		*out = n
	}

	step("status transitions", s.Engine.AdvanceStatuses, &r.StatusChanges)
	step("hold sweep", s.Engine.ExpireHolds, &r.HoldsExpired)
	step("offer sweep", s.Engine.ExpireOffers, &r.OffersExpired)
	step("promotion drain", s.Engine.DrainSeatEvents, &r.Offers)
	if s.ReconcileEvery > 0 && s.ticks%s.ReconcileEvery == 0 {
		step("reconcile", s.Engine.Reconcile, &r.Reconciled)
	}

	if r.StatusChanges+r.HoldsExpired+r.OffersExpired+r.Offers+r.Reconciled > 0 {
		log.Printf("scheduler: tick %d status=%d holds=%d offers_expired=%d offered=%d reconciled=%d",
			s.ticks, r.StatusChanges, r.HoldsExpired, r.OffersExpired, r.Offers, r.Reconciled)
	}
	return r
}
