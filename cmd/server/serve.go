package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"grievance/internal/platform/httpserver"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with notification workers, the audit relay and sweepers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, serve)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

// serve supervises the HTTP server and every background loop. The first
// failure cancels the rest; a signal shuts everything down in order.
func serve(ctx context.Context, a *app) error {
	srv := httpserver.New(ctx, a.cfg.Addr, a.router(), a.logger)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "starting grievance api",
			"addr", a.cfg.Addr,
			"environment", a.cfg.Environment,
			"memory_mode", a.cfg.MemoryMode,
			"storage", describeStorage(a.cfg.Storage),
			"redis", a.redis != nil,
			"audit_relay", a.relay != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.logger.InfoContext(shutdownCtx, "shutting down")
		err := srv.Shutdown(shutdownCtx)
		a.dispatcher.Close()
		return err
	})

	g.Go(func() error {
		return ignoreCanceled(a.dispatcher.Run(ctx))
	})

	if a.relay != nil {
		g.Go(func() error {
			return ignoreCanceled(a.relay.Run(ctx))
		})
	}

	g.Go(func() error {
		every := a.cfg.SweepEvery
		if every <= 0 {
			every = time.Minute
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				a.sweep(ctx, now)
			}
		}
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
