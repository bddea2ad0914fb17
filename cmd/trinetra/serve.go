package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trinetra/internal/db"
	"trinetra/internal/geo"
	"trinetra/internal/metrics"
	"trinetra/internal/server"
	"trinetra/internal/verification"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP server",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "memory",
			Usage: "Keep all data in process memory instead of Postgres",
		},
		&cli.BoolFlag{
			Name:    "migrate",
			Usage:   "Apply pending migrations before serving",
			EnvVars: []string{"AUTO_MIGRATE"},
		},
	},
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cCtx)

	config, err := loadConfig()
	if err != nil {
		return err
	}

	repos, err := openRepositories(ctx, config, cCtx.Bool("memory"), logger)
	if err != nil {
		return err
	}
	defer repos.close()

	if cCtx.Bool("migrate") && repos.pool != nil {
		if err := db.Migrate(ctx, repos.pool, config.DatabaseSchema, logger); err != nil {
			return err
		}
	}

	awsCfg := new(awsConfig)

	files, err := openFiles(ctx, config, awsCfg)
	if err != nil {
		return err
	}

	cache, closeCache, err := openGeocodeCache(ctx, config, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	notifier, err := openNotifier(config, logger)
	if err != nil {
		return err
	}
	defer notifier.Close()

	mailer, err := openMailer(ctx, config, awsCfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	if config.MapsAPIKey == "" {
		logger.Warn("MAPS_API_KEY is not set, geocoding requests will be rejected by the provider")
	}

	authService, err := newAuthService(config, repos, mailer, logger)
	if err != nil {
		return err
	}

	verify := newVerificationService(config, repos, verificationOptions{
		geocoder: geo.NewGoogleGeocoder(config.MapsAPIKey, config.UpstreamTimeout(), cache, logger),
		files:    files,
		notifier: notifier,
		metrics:  m,
	}, logger)

	srv, err := server.New(config, logger, authService, verify, files, m, registry)
	if err != nil {
		return err
	}

	if sweep := config.ExpirySweep(); sweep > 0 {
		go runExpirySweeper(ctx, verify, sweep, logger)
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

// runExpirySweeper expires stale drafts every interval until ctx ends. Reads
// already apply expiry lazily; the sweep keeps stored statuses and listings
// in step.
func runExpirySweeper(ctx context.Context, verify *verification.Service, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := verify.ExpireStale(ctx); err != nil {
				logger.WithError(err).Error("failed to expire stale drafts")
			}
		}
	}
}
