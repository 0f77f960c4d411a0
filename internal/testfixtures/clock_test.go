package testfixtures

import (
	"testing"
	"time"
)

func TestClockAdvance(t *testing.T) {
	c := NewClock(time.Time{})
	if !c.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected reference time, got %s", c.Now())
	}
	got := c.Advance(90 * time.Minute)
	if !got.Equal(ReferenceTime().Add(90*time.Minute)) || !c.Now().Equal(got) {
		t.Fatalf("unexpected time after advance: %s", got)
	}
	c.Set(ReferenceTime())
	if !c.NowFunc()().Equal(ReferenceTime()) {
		t.Fatal("Set did not rewind the clock")
	}
}

func TestSQLiteHarnessSeeds(t *testing.T) {
	h := NewSQLiteHarness(t)
	tenant := h.SeedTenant(t, "club", time.Hour, 30*time.Minute)
	if tenant.ID == 0 {
		t.Fatal("expected tenant id")
	}
	ps := h.SeedParticipants(t, tenant.ID, 5, 3)
	if len(ps) != 3 || ps[2].ID == ps[0].ID {
		t.Fatalf("unexpected participants %+v", ps)
	}
}
