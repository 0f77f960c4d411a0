// Package service implements the booking engine: the session registry,
// reservation ledger, hold manager, waitlist queue and promotion engine.
//
// Every operation that reads and then changes a session's seats or queue
// runs inside withSession, which takes the session's lock.Locker key and
// then a transaction holding the session row FOR UPDATE.  Notifications
// collected during the transaction are handed to the Notifier only after
// it commits.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/directory"
	"github.com/iliyamo/session-booking/internal/lock"
	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/queue"
	"github.com/iliyamo/session-booking/internal/repository"
)

var tracer = otel.Tracer("github.com/iliyamo/session-booking/internal/service")

// Defaults used when neither the session nor its tenant configures a value.
const (
	DefaultHoldTTL     = time.Hour
	DefaultOfferWindow = 30 * time.Minute
	defaultDrainPasses = 16
	drainBatch         = 100
)

// Config tunes the engine.
type Config struct {
	HoldTTL     time.Duration
	OfferWindow time.Duration
	// DrainPasses bounds how many times DrainSeatEvents re-reads the work
	// queue within one call.
	DrainPasses int
}

// Deps are the collaborators of the engine.
type Deps struct {
	DB        *database.DB
	Directory *directory.Directory
	Locker    lock.Locker
	Notifier  queue.Notifier
	Now       func() time.Time
}

// Service is the booking engine.
type Service struct {
	db       *database.DB
	dir      *directory.Directory
	locker   lock.Locker
	notifier queue.Notifier
	now      func() time.Time
	sessions *repository.SessionRepo
	signups  *repository.SignupRepo
	waitlist *repository.WaitlistRepo
	events   *repository.SeatEventRepo
	cfg      Config
}

// New builds a Service.  Missing optional dependencies get in-process
// defaults.
func New(deps Deps, cfg Config) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.OfferWindow <= 0 {
		cfg.OfferWindow = DefaultOfferWindow
	}
	if cfg.DrainPasses <= 0 {
		cfg.DrainPasses = defaultDrainPasses
	}
	s := &Service{
		db:       deps.DB,
		dir:      deps.Directory,
		locker:   deps.Locker,
		notifier: deps.Notifier,
		now:      deps.Now,
		sessions: repository.NewSessionRepo(),
		signups:  repository.NewSignupRepo(),
		waitlist: repository.NewWaitlistRepo(),
		events:   repository.NewSeatEventRepo(),
		cfg:      cfg,
	}
	if s.dir == nil {
		s.dir = directory.New(repository.NewDirectoryRepo(deps.DB), 0, 0)
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.notifier == nil {
		s.notifier = queue.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Actor is the authenticated caller.  Admins act for any participant of
// their tenant; guardians only for their own.
type Actor struct {
	UserID   uint64
	TenantID uint64
	Admin    bool
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// withSession runs fn under the session's serialisation boundary.  The
// lock is always taken before the transaction begins.
func (s *Service) withSession(ctx context.Context, sessionID uint64, fn func(tx *database.Tx, sess *model.Session) error) error {
	release, err := s.locker.Lock(ctx, lock.SessionKey(sessionID))
	if err != nil {
		return fmt.Errorf("lock session %d: %w", sessionID, err)
	}
	defer release()
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		sess, err := s.sessions.GetForUpdate(ctx, tx, sessionID)
		if err != nil {
			return mapStoreErr(err)
		}
		return fn(tx, sess)
	})
}

// loadSession reads a session outside any lock and checks the tenant.
func (s *Service) loadSession(ctx context.Context, actor Actor, sessionID uint64) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, s.db, sessionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if sess.TenantID != actor.TenantID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// authorizeParticipant resolves a participant and checks that actor may
// act for it.
func (s *Service) authorizeParticipant(ctx context.Context, actor Actor, participantID uint64) (model.Participant, error) {
	p, err := s.dir.Participant(ctx, participantID)
	if err != nil {
		return model.Participant{}, mapStoreErr(err)
	}
	if p.TenantID != actor.TenantID {
		return model.Participant{}, ErrNotFound
	}
	if !actor.Admin && p.GuardianID != actor.UserID {
		return model.Participant{}, ErrForbidden
	}
	return p, nil
}

// holdTTL and offerWindow resolve the effective durations for a session.
func (s *Service) holdTTL(t model.Tenant) time.Duration {
	if t.HoldTTLSeconds > 0 {
		return time.Duration(t.HoldTTLSeconds) * time.Second
	}
	return s.cfg.HoldTTL
}

func (s *Service) offerWindow(sess model.Session, t model.Tenant) time.Duration {
	if sess.OfferWindowSeconds > 0 {
		return time.Duration(sess.OfferWindowSeconds) * time.Second
	}
	if t.OfferWindowSeconds > 0 {
		return time.Duration(t.OfferWindowSeconds) * time.Second
	}
	return s.cfg.OfferWindow
}

// tenantOf resolves a tenant, falling back to empty defaults when the
// directory has no row so sweeps never stall on directory gaps.
func (s *Service) tenantOf(ctx context.Context, tenantID uint64) model.Tenant {
	t, err := s.dir.Tenant(ctx, tenantID)
	if err != nil {
		log.Printf("service: resolve tenant %d: %v", tenantID, err)
		return model.Tenant{ID: tenantID}
	}
	return t
}

func (s *Service) emit(ns []queue.Notification) {
	for _, n := range ns {
		s.notifier.Notify(n)
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
