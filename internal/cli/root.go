package cli

import (
	"io"
	"log"

	"github.com/ibarwick/config-log/internal/platform/config"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Verbose bool
}

// NewRootCommand creates the root command for the configlog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "configlog",
		Short: "config_log - PostgreSQL configuration change auditor",
		Long: `Periodically records changes to PostgreSQL server settings by calling
the pg_settings_logger() function installed alongside the pg_settings_log table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "file to load environment settings from")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// loadConfig applies the global flags on top of the environment.
func loadConfig(opts *RootOptions) *config.Config {
	cfg := config.Load(opts.EnvFile)
	if opts.Verbose {
		cfg.Verbose = true
	}
	return cfg
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lmicroseconds | log.Lshortfile
	}
	return log.New(w, "", flags)
}
