package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/session-booking/internal/config"
)

// newSweepCmd runs a single scheduler tick, for cron-driven deployments
// that do not keep serve running.
func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one scheduler tick and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			s := a.scheduler()
			s.ReconcileEvery = 1
			r := s.Tick(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(),
				"status changes=%d holds expired=%d offers expired=%d offers made=%d reconciled=%d\n",
				r.StatusChanges, r.HoldsExpired, r.OffersExpired, r.Offers, r.Reconciled)
			if len(r.Failed) > 0 {
				return fmt.Errorf("sweep steps failed: %s", strings.Join(r.Failed, ", "))
			}
			return nil
		},
	}
}
