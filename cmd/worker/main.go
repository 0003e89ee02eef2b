package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nadmax/failscope/internal/config"
	"github.com/nadmax/failscope/internal/logging"
	"github.com/nadmax/failscope/internal/notify"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/store/backend"
	"github.com/nadmax/failscope/internal/viewmodel"
	"github.com/nadmax/failscope/internal/worker"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, err := logging.Configure(cfg.LogLevel, cfg.LogFormat, "worker", os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	if len(cfg.Projects) == 0 {
		log.Fatal("PROJECTS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var finder query.Finder
	if cfg.QueryAPIURL != "" {
		log.WithField("url", cfg.QueryAPIURL).Info("querying remote task service")
	} else {
		st, err := backend.Open(ctx, cfg)
		if err != nil {
			log.WithError(err).Fatal("failed to open record store")
		}

		defer func() {
			if err := st.Close(); err != nil {
				log.WithError(err).Warn("failed to close record store")
			}
		}()

		finder = st
	}
	client := query.NewClient(cfg.QueryOptions(), finder)

	browsers := make([]*viewmodel.FailureBrowser, 0, len(cfg.Projects))
	for _, p := range cfg.Projects {
		browsers = append(browsers, viewmodel.New(p, client,
			viewmodel.WithLogger(log),
			viewmodel.WithFilter(viewmodel.Filter{
				LookBackDays: cfg.DefaultLookBackDays,
				Statuses:     viewmodel.DefaultFilter().Statuses,
			}),
		))
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%d", time.Now().Unix())
	}

	w := worker.NewWorker(workerID, browsers, newNotifier(cfg, log))
	w.SetInterval(cfg.RefreshInterval)
	w.SetLinkBase(cfg.LinkBaseURL)

	go w.Start(ctx)

	<-ctx.Done()
	log.Info("shutting down worker")
	w.Stop()
	for _, b := range browsers {
		b.Wait()
	}
}

func newNotifier(cfg config.Config, log *logrus.Entry) notify.Notifier {
	if cfg.EmailAPIKey == "" {
		log.Info("EMAIL_API_KEY not set, digests are logged")
		return notify.LogNotifier{Log: log}
	}

	n, err := notify.NewSendGridNotifier(notify.SendGridOptions{
		APIKey:      cfg.EmailAPIKey,
		FromName:    cfg.FromName,
		FromAddress: cfg.FromAddress,
		To:          cfg.DigestTo,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to configure digest email")
	}
	return n
}
