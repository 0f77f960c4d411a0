// Package cli holds the bookingd commands.
package cli

import (
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// NewRoot returns the bookingd command tree.
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bookingd",
		Short:         "Session seat booking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}
