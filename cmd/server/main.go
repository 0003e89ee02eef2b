package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nadmax/failscope/internal/api"
	"github.com/nadmax/failscope/internal/config"
	"github.com/nadmax/failscope/internal/dashboard"
	"github.com/nadmax/failscope/internal/logging"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/store/backend"
	"github.com/nadmax/failscope/internal/viewmodel"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, err := logging.Configure(cfg.LogLevel, cfg.LogFormat, "server", os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open record store")
	}

	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("failed to close record store")
		}
	}()

	if len(cfg.Projects) == 0 {
		log.Warn("PROJECTS is empty, the failure dashboard serves no projects")
	}
	if cfg.QueryAPIURL != "" {
		log.WithField("url", cfg.QueryAPIURL).Info("dashboard queries remote task service")
	}

	registry := dashboard.NewRegistry(ctx, query.NewClient(cfg.QueryOptions(), st), cfg.Projects,
		viewmodel.WithLogger(log),
		viewmodel.WithFilter(viewmodel.Filter{
			LookBackDays: cfg.DefaultLookBackDays,
			Statuses:     viewmodel.DefaultFilter().Statuses,
		}),
	)
	for _, p := range cfg.Projects {
		registry.Get(p)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewAPI(st, dashboard.NewDashboard(registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"port": cfg.Port, "backend": cfg.StoreBackend}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		startMetricsCollector(gctx, registry)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
	}
	registry.Wait()
}
