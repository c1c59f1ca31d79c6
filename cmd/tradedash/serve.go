package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradedash/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) newServeCmd() *cobra.Command {
	var addr, dbPath, optionsPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, firstNonEmpty(addr, c.cfg.HTTPAddr), dbPath, optionsPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $TRADEDASH_HTTP_ADDR or :8050)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite fetch journal path (empty disables the journal)")
	cmd.Flags().StringVar(&optionsPath, "options", "", "YAML file with the dropdown options")
	return cmd
}

func (c *cli) serve(ctx context.Context, addr, dbPath, optionsPath string) error {
	app, journal, err := c.buildApp(dbPath, optionsPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	srv := server.NewServer(addr, app, c.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.log.Info("dashboard listening", zap.String("addr", addr))
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		c.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
