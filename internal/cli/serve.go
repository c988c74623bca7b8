package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"framegate/internal/metrics"
	"framegate/internal/server"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var warm bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, warm)
		},
	}
	cmd.Flags().BoolVar(&warm, "warm", false, "fetch every game's data at startup")
	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, warm bool) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	gw, err := server.NewBuilder(cfg, logger).Build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}()

	if warm {
		go func() {
			if err := gw.Store.Warm(ctx); err != nil {
				logger.Warn("warm up incomplete", "err", err)
				return
			}
			logger.Info("warm up complete", "games", gw.Registry.Len())
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ls := range gw.Listeners {
		g.Go(func() error {
			logger.Info("listening", "listener", ls.Name, "addr", ls.Server.Addr, "tls", ls.TLS.Enabled)
			var err error
			if ls.TLS.Enabled {
				err = ls.Server.ListenAndServeTLS(ls.TLS.CertFile, ls.TLS.KeyFile)
			} else {
				err = ls.Server.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, ls := range gw.Listeners {
			if err := ls.Server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
