package cli

import (
	"context"
	"fmt"

	"github.com/ibarwick/config-log/internal/app/service"
	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/domain/model"
	"github.com/ibarwick/config-log/internal/platform/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// objectFlags names the dependent objects checked by validate and invoke.
type objectFlags struct {
	Table    string
	Function string
}

func (f *objectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Table, "table", model.DefaultTableName, "settings log table name")
	cmd.Flags().StringVar(&f.Function, "function", model.DefaultFunctionName, "settings logger function name")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &objectFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the settings log table and logger function exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(rootOpts)
			svc, done, err := openService(cmd.Context(), cfg, cmd)
			if err != nil {
				return err
			}
			defer done()

			objects, err := svc.ValidateObjects(cmd.Context(), cfg.Task.Schema, flags.Table, flags.Function)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s.%s and %s.%s() found in database %q\n",
				objects.Schema, objects.TableName, objects.Schema, objects.FunctionName, cfg.Task.Database)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &objectFlags{}
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Validate the dependent objects and record settings once",
		Long: `Validate the dependent objects and call the logger function a single
time. Intended for external schedulers such as cron.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(rootOpts)
			svc, done, err := openService(cmd.Context(), cfg, cmd)
			if err != nil {
				return err
			}
			defer done()

			objects, err := svc.ValidateObjects(cmd.Context(), cfg.Task.Schema, flags.Table, flags.Function)
			if err != nil {
				return err
			}
			changed, err := svc.InvokeLogger(cmd.Context(), objects, model.TriggerManual)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "changed: %t\n", changed)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func openService(ctx context.Context, cfg *config.Config, cmd *cobra.Command) (*service.ConfigLogService, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	repo, closeDB, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, nil, common.Fatal("connect", err, "could not connect to database %q", cfg.Task.Database)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	svc := service.NewConfigLogService(repo, nil, logger).WithRun(uuid.NewString(), cfg.Task.Database)
	return svc, closeDB, nil
}
