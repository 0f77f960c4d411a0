package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/repository"
	"github.com/iliyamo/session-booking/internal/testfixtures"
)

type env struct {
	db       *database.DB
	now      time.Time
	session  *model.Session
	kids     []model.Participant
	signups  *repository.SignupRepo
	waitlist *repository.WaitlistRepo
	events   *repository.SeatEventRepo
}

func setup(t *testing.T) *env {
	t.Helper()
	h := testfixtures.NewSQLiteHarness(t)
	tenant := h.SeedTenant(t, "club", time.Hour, 30*time.Minute)
	now := testfixtures.ReferenceTime()
	sess := &model.Session{
		TenantID:        tenant.ID,
		Title:           "Friday swim",
		Capacity:        2,
		StartsAt:        now.Add(24 * time.Hour),
		EndsAt:          now.Add(25 * time.Hour),
		Status:          model.StatusOpen,
		WindowKind:      model.WindowNone,
		WaitlistEnabled: true,
		AutoPromote:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := repository.NewSessionRepo().Create(context.Background(), h.DB, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return &env{
		db:       h.DB,
		now:      now,
		session:  sess,
		kids:     h.SeedParticipants(t, tenant.ID, 50, 3),
		signups:  repository.NewSignupRepo(),
		waitlist: repository.NewWaitlistRepo(),
		events:   repository.NewSeatEventRepo(),
	}
}

func (e *env) entry(t *testing.T, kid, position int) *model.WaitlistEntry {
	t.Helper()
	w := &model.WaitlistEntry{
		TenantID:      e.session.TenantID,
		SessionID:     e.session.ID,
		ParticipantID: e.kids[kid].ID,
		Position:      position,
		JoinedAt:      e.now,
		OfferStatus:   model.OfferNone,
		UpdatedAt:     e.now,
	}
	if err := e.waitlist.Create(context.Background(), e.db, w); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return w
}

func TestSignupUniquenessAndOccupancy(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	exp := e.now.Add(time.Hour)
	hold := &model.Signup{TenantID: e.session.TenantID, SessionID: e.session.ID, ParticipantID: e.kids[0].ID, ReservationExpiresAt: &exp, CreatedAt: e.now}
	if err := e.signups.Create(ctx, e.db, hold); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := *hold
	dup.ID = 0
	if err := e.signups.Create(ctx, e.db, &dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate err = %v", err)
	}

	if n, _ := e.signups.Occupancy(ctx, e.db, e.session.ID, e.now); n != 1 {
		t.Fatalf("occupancy before expiry = %d", n)
	}
	if n, _ := e.signups.Occupancy(ctx, e.db, e.session.ID, exp); n != 0 {
		t.Fatalf("occupancy at expiry = %d", n)
	}

	ids, err := e.signups.SessionsWithExpiredHolds(ctx, e.db, exp)
	if err != nil || len(ids) != 1 || ids[0] != e.session.ID {
		t.Fatalf("sessions with expired holds = %v %v", ids, err)
	}
	var removed []model.Signup
	err = e.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		removed, err = e.signups.ExpireHolds(ctx, tx, e.session.ID, exp)
		return err
	})
	if err != nil || len(removed) != 1 {
		t.Fatalf("expire holds = %v %v", removed, err)
	}
	if _, err := e.signups.GetByID(ctx, e.db, hold.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expired hold still present: %v", err)
	}
}

func TestWaitlistTransitions(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	first := e.entry(t, 0, 1)
	second := e.entry(t, 1, 2)

	next, err := e.waitlist.NextWaiting(ctx, e.db, e.session.ID, 1)
	if err != nil || len(next) != 1 || next[0].ID != first.ID {
		t.Fatalf("next waiting = %v %v", next, err)
	}

	deadline := e.now.Add(30 * time.Minute)
	if err := e.waitlist.Offer(ctx, e.db, first.ID, deadline, e.now); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := e.waitlist.Offer(ctx, e.db, first.ID, deadline, e.now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second offer err = %v", err)
	}

	c, err := e.waitlist.Counts(ctx, e.db, e.session.ID, e.now)
	if err != nil || c != (repository.WaitlistCounts{Waiting: 1, LiveOffers: 1, Active: 2}) {
		t.Fatalf("counts = %+v %v", c, err)
	}
	// a lapsed offer is still active until swept but no longer live
	c, _ = e.waitlist.Counts(ctx, e.db, e.session.ID, deadline)
	if c.LiveOffers != 0 || c.Active != 2 {
		t.Fatalf("counts at deadline = %+v", c)
	}

	expired, err := e.waitlist.ExpiredOffers(ctx, e.db, e.session.ID, deadline)
	if err != nil || len(expired) != 1 || expired[0].ID != first.ID {
		t.Fatalf("expired offers = %v %v", expired, err)
	}
	if err := e.waitlist.Finish(ctx, e.db, first.ID, model.OfferExpired, deadline); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := e.waitlist.Finish(ctx, e.db, first.ID, model.OfferCancelled, deadline); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("finishing a terminal entry err = %v", err)
	}

	active, err := e.waitlist.ListActive(ctx, e.db, e.session.ID)
	if err != nil || len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("active = %v %v", active, err)
	}
	if last, _ := e.waitlist.MaxPosition(ctx, e.db, e.session.ID); last != 2 {
		t.Fatalf("max position = %d", last)
	}

	n, err := e.waitlist.ExpireActive(ctx, e.db, e.session.ID, deadline)
	if err != nil || n != 1 {
		t.Fatalf("expire active = %d %v", n, err)
	}
}

func TestSeatEventQueue(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	if err := e.events.Record(ctx, e.db, e.session.ID, 0, model.ReasonHoldExpired, e.now); err != nil {
		t.Fatalf("record zero: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := e.events.Record(ctx, e.db, e.session.ID, 1, model.ReasonSignupCancelled, e.now); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if n, _ := e.events.Count(ctx, e.db); n != 2 {
		t.Fatalf("count = %d", n)
	}
	ids, err := e.events.PendingSessions(ctx, e.db, 10)
	if err != nil || len(ids) != 1 {
		t.Fatalf("pending = %v %v", ids, err)
	}
	var seats int
	err = e.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		seats, err = e.events.Take(ctx, tx, e.session.ID)
		return err
	})
	if err != nil || seats != 2 {
		t.Fatalf("take = %d %v", seats, err)
	}
	if n, _ := e.events.Count(ctx, e.db); n != 0 {
		t.Fatalf("count after take = %d", n)
	}
}
