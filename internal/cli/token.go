package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/session-booking/internal/config"
	"github.com/iliyamo/session-booking/internal/middleware"
	"github.com/iliyamo/session-booking/internal/utils"
)

// newTokenCmd mints an access token for local development.  Production
// tokens come from the identity service.
func newTokenCmd() *cobra.Command {
	var (
		user   uint64
		tenant uint64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}
			role = strings.ToUpper(role)
			if role != middleware.RoleParent && role != middleware.RoleAdmin {
				return fmt.Errorf("role must be %s or %s", middleware.RoleParent, middleware.RoleAdmin)
			}
			tok, err := utils.NewAccessToken(cfg.JWTSecret, utils.Claims{UserID: user, TenantID: tenant, Role: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&user, "user", 0, "user id (sub claim)")
	cmd.Flags().Uint64Var(&tenant, "tenant", 0, "tenant id")
	cmd.Flags().StringVar(&role, "role", middleware.RoleParent, "PARENT or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
