package main

import (
	"context"
	"io"
	"os"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/client"
	"github.com/agentuity/go-apiclient/config"
	"github.com/agentuity/go-apiclient/logger"
	"github.com/agentuity/go-apiclient/telemetry"
	"github.com/agentuity/go-apiclient/tui"
	"github.com/spf13/cobra"
)

const serviceName = "apiclient"

// app holds what the subcommands share. It is populated by the root
// command before any subcommand runs.
type app struct {
	options  []client.Option
	in       io.Reader
	printer  *tui.Printer
	logger   logger.Logger
	client   *client.Client
	shutdown telemetry.ShutdownFunc
}

// flagOrEnv returns the flag value when set, then the environment value,
// then defaultValue.
func flagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok {
		return val
	}
	return defaultValue
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a.in = cmd.InOrStdin()
	a.printer = tui.NewPrinter(cmd.OutOrStdout())

	level := logger.ParseLevel(flagOrEnv(cmd, "log-level", logger.LevelEnv, "warn"))
	var log logger.Logger = logger.NewWriterLogger(cmd.ErrOrStderr(), level)

	cfg, err := config.Load(flagOrEnv(cmd, "config", "APICLIENT_CONFIG", ""))
	if err != nil {
		return err
	}

	a.shutdown = func() {}
	if noTelemetry, _ := cmd.Flags().GetBool("no-telemetry"); !noTelemetry {
		if log, a.shutdown, err = telemetry.New(ctx, cfg.OTLPEndpoint, serviceName, log); err != nil {
			return err
		}
	}
	a.logger = log

	opts := append([]client.Option{client.WithLogger(log)}, a.options...)
	a.client, err = client.New(ctx, cfg, opts...)
	return err
}

func (a *app) teardown() {
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
	if a.shutdown != nil {
		a.shutdown()
		a.shutdown = nil
	}
}

// run wraps a subcommand body so failures are printed with their user
// facing description. The client is closed when the body returns.
func (a *app) run(fn func(ctx context.Context, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.teardown()
		if err := fn(cmd.Context(), args); err != nil {
			a.logger.Debug("command failed: %+v", err)
			tui.NewPrinter(cmd.ErrOrStderr()).Error("%s", api.Describe(err))
			return err
		}
		return nil
	}
}

func newRootCommand(options []client.Option) *cobra.Command {
	a := &app{options: options}
	root := &cobra.Command{
		Use:           "apiclient",
		Short:         "Authenticated API client with session renewal and response caching",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				a.teardown()
				tui.NewPrinter(cmd.ErrOrStderr()).Error("%s", api.Describe(err))
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().Bool("no-telemetry", false, "disable OpenTelemetry export")

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newStatusCommand(a),
		newGetCommand(a),
		newCacheCommand(a),
	)
	return root
}
