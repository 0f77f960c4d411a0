package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/session-booking/internal/config"
	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/directory"
	"github.com/iliyamo/session-booking/internal/lock"
	"github.com/iliyamo/session-booking/internal/queue"
	"github.com/iliyamo/session-booking/internal/repository"
	"github.com/iliyamo/session-booking/internal/scheduler"
	"github.com/iliyamo/session-booking/internal/service"
)

var _ scheduler.Engine = (*service.Service)(nil)

// app is the engine assembled from configuration, shared by serve and
// sweep.
type app struct {
	cfg      config.Config
	db       *database.DB
	rdb      *redis.Client
	notifier queue.Notifier
	svc      *service.Service
}

func openDB(cfg config.Config) (*database.DB, error) {
	db, err := database.Open(database.Options{
		Driver: cfg.DB.Driver,
		User:   cfg.DB.User,
		Pass:   cfg.DB.Pass,
		Host:   cfg.DB.Host,
		Port:   cfg.DB.Port,
		Name:   cfg.DB.Name,
		Path:   cfg.DB.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// newApp opens storage and wires the engine.  Redis is optional unless
// LOCK_BACKEND=redis; notifications go to RabbitMQ when NOTIFY_ENABLED is
// set and to the log otherwise.
func newApp(cfg config.Config) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}

	a.rdb = config.NewRedisClient(cfg.Redis)
	if a.rdb == nil {
		log.Printf("redis: unavailable at %s; rate limiting and caching disabled", cfg.Redis.Address())
	}

	var locker lock.Locker
	switch cfg.LockBackend {
	case "redis":
		if a.rdb == nil {
			_ = db.Close()
			return nil, fmt.Errorf("LOCK_BACKEND=redis but redis is unreachable at %s", cfg.Redis.Address())
		}
		locker = lock.NewRedisLocker(a.rdb, "booking:lock:", cfg.LockTTL, cfg.LockWait)
	default:
		locker = lock.NewKeyedMutex()
	}

	if cfg.NotifyEnabled {
		a.notifier = queue.NewAsyncNotifier(queue.NewAMQPPublisher(cfg.RabbitURL), 0)
	} else {
		a.notifier = queue.LogNotifier{}
	}

	a.svc = service.New(service.Deps{
		DB:        db,
		Directory: directory.New(repository.NewDirectoryRepo(db), cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL),
		Locker:    locker,
		Notifier:  a.notifier,
	}, service.Config{
		HoldTTL:     cfg.HoldTTL,
		OfferWindow: cfg.OfferWindow,
	})
	return a, nil
}

func (a *app) scheduler() *scheduler.Scheduler {
	return &scheduler.Scheduler{
		Engine:         a.svc,
		Interval:       a.cfg.SchedInterval,
		ReconcileEvery: a.cfg.ReconcileEvery,
	}
}

// close flushes queued notifications and releases connections.
func (a *app) close(ctx context.Context) {
	if n, ok := a.notifier.(*queue.AsyncNotifier); ok {
		if err := n.Close(ctx); err != nil {
			log.Printf("notify: flush incomplete: %v", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}
