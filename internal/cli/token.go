package cli

import (
	"fmt"
	"time"

	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/common/security"
	"github.com/ibarwick/config-log/internal/domain/model"

	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an admin token for the control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject must not be empty: %w", common.ErrInvalidArgument)
			}
			cfg := loadConfig(rootOpts)
			if ttl <= 0 {
				ttl = cfg.JWTExp
			}
			security.InitJWT(cfg.JWTKey)
			token, err := security.GenerateToken(subject, model.RoleAdmin, ttl)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_EXPIRATION_HOURS)")
	return cmd
}
