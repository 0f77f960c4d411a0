package scheduler

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type stubEngine struct {
	calls []string
	fail  map[string]bool
}

func (e *stubEngine) call(name string) (int, error) {
	e.calls = append(e.calls, name)
	if e.fail[name] {
		return 0, errors.New("storage unavailable")
	}
	return 1, nil
}

func (e *stubEngine) AdvanceStatuses(context.Context) (int, error) { return e.call("status") }
func (e *stubEngine) ExpireHolds(context.Context) (int, error)     { return e.call("holds") }
func (e *stubEngine) ExpireOffers(context.Context) (int, error)    { return e.call("offers") }
func (e *stubEngine) DrainSeatEvents(context.Context) (int, error) { return e.call("drain") }
func (e *stubEngine) Reconcile(context.Context) (int, error)       { return e.call("reconcile") }

func TestTickRunsStepsInOrder(t *testing.T) {
	eng := &stubEngine{}
	s := &Scheduler{Engine: eng, ReconcileEvery: 2}

	r := s.Tick(context.Background())
	if want := []string{"status", "holds", "offers", "drain"}; !reflect.DeepEqual(eng.calls, want) {
		t.Fatalf("calls = %v, want %v", eng.calls, want)
	}
	if r.HoldsExpired != 1 || r.Offers != 1 || r.Reconciled != 0 {
		t.Fatalf("unexpected report %+v", r)
	}

	eng.calls = nil
	r = s.Tick(context.Background())
	if want := []string{"status", "holds", "offers", "drain", "reconcile"}; !reflect.DeepEqual(eng.calls, want) {
		t.Fatalf("calls = %v, want %v", eng.calls, want)
	}
	if r.Reconciled != 1 {
		t.Fatalf("expected reconcile on the second tick, got %+v", r)
	}
}

func TestTickContinuesAfterFailedStep(t *testing.T) {
	eng := &stubEngine{fail: map[string]bool{"holds": true}}
	s := &Scheduler{Engine: eng}

	r := s.Tick(context.Background())
	if len(eng.calls) != 4 {
		t.Fatalf("expected every step to run, got %v", eng.calls)
	}
	if !reflect.DeepEqual(r.Failed, []string{"hold sweep"}) || r.Offers != 1 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	eng := &stubEngine{}
	s := &Scheduler{Engine: eng, Interval: time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(eng.calls) < 4 {
		t.Fatalf("expected at least one tick, got %v", eng.calls)
	}
}
