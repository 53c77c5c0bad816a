package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"grievance/internal/platform/config"
	"grievance/internal/platform/logger"
)

// main wires the cobra command tree. Every command loads the same typed
// configuration; business logic lives in the internal service packages.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "grievance",
		Short:         "Citizen complaint management backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().Bool("memory", false, "keep all state in memory instead of Postgres")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newComplaintsCmd(opts),
		newRegistrationsCmd(opts),
		newRateLimitCmd(opts),
	)
	return root
}

// load reads configuration with the command's flags applied on top.
func (o *rootOptions) load(cmd *cobra.Command) (config.Server, *slog.Logger, error) {
	cfg, err := config.LoadWithFlags(o.configFile, cmd.Flags())
	if err != nil {
		return config.Server{}, nil, err
	}
	return cfg, logger.New(cfg.Environment, cfg.LogLevel), nil
}

// withApp builds the full dependency graph for one command and tears it down
// afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := o.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
