package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/session-booking/internal/config"
	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/handler"
	"github.com/iliyamo/session-booking/internal/middleware"
	"github.com/iliyamo/session-booking/internal/queue"
	"github.com/iliyamo/session-booking/internal/router"
	"github.com/iliyamo/session-booking/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if migrate {
				if err := database.Migrate(ctx, a.db); err != nil {
					a.close(context.Background())
					return err
				}
			}
			return serve(ctx, a, shutdownTracing)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func newEcho(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	cache := middleware.NewResponseCache(a.cfg.Cache, a.rdb)
	router.RegisterRoutes(e, router.Options{
		JWTSecret: a.cfg.JWTSecret,
		Health:    handler.Health(a.db),
		Booking:   handler.NewBookingHandler(a.svc, cache),
		RateLimit: middleware.NewTokenBucket(a.cfg.RateLimit, a.rdb),
		Cache:     cache.Middleware(),
	})
	return e
}

// serve runs the API, the scheduler and the optional notification
// consumer until ctx ends or one of them fails, then shuts down in order:
// stop accepting requests, flush notifications, close storage.
func serve(ctx context.Context, a *app, shutdownTracing func(context.Context) error) error {
	e := newEcho(a)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + a.cfg.Port
		log.Printf("listening on %s (env=%s)", addr, a.cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := a.scheduler().Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if a.cfg.NotifyConsumer {
		g.Go(func() error {
			err := queue.StartNotificationConsumer(gctx, a.cfg.RabbitURL, a.cfg.NotifyLogPath)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.close(flushCtx)
	if terr := shutdownTracing(flushCtx); terr != nil {
		log.Printf("telemetry: shutdown: %v", terr)
	}
	return err
}
