package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soochol/platescan/internal/api"
	"github.com/soochol/platescan/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	retention := services.NewRetentionService(cfg.Retention.MaxAge,
		services.NamedStore{Name: "uploads", Store: a.uploads},
		services.NamedStore{Name: "result", Store: a.results},
	)
	retention.SetMetrics(a.metrics)
	if err := retention.Start(cfg.Retention.Schedule); err != nil {
		return err
	}
	defer retention.Stop()

	srv := api.NewServer(a.process, a.uploads, a.results)
	srv.SetJobRepository(a.jobs)
	srv.SetMetrics(a.metrics)
	srv.SetStaticDir(cfg.Server.StaticDir)
	srv.SetMaxUploadSize(cfg.Upload.MaxSizeMB << 20)
	srv.SetPreviewConfig(cfg.Preview.MaxSizeMB<<20, cfg.Preview.DiscardStale)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting platescan server", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
