package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ryabkov82/pvoutput-ingest/internal/client"
	"github.com/ryabkov82/pvoutput-ingest/internal/config"
	"github.com/ryabkov82/pvoutput-ingest/internal/httpapi"
	"github.com/ryabkov82/pvoutput-ingest/internal/job"
	"github.com/ryabkov82/pvoutput-ingest/internal/pvoutput"
	"github.com/ryabkov82/pvoutput-ingest/internal/version"
)

const (
	readTimeout       = 1 * time.Minute
	readHeaderTimeout = 20 * time.Second
	writeTimeout      = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfigPath), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Unable to load configuration: %s", err)
	}

	l, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Unable to initialize Zap logger: %s", err)
	}
	defer func() { _ = l.Sync() }()

	logger := l.Sugar()
	if err := run(cfg, logger); err != nil {
		logger.Fatalf("Unable to start server: %s", err)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if !cfg.IsProduction() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	logger.Infof("Starting %s", version.String())

	charset, err := client.LookupCharset(cfg.API.Charset)
	if err != nil {
		return fmt.Errorf("unable to configure charset: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c, err := client.NewClient(client.Options{
		BaseURL:      cfg.API.BaseURL,
		APIKey:       cfg.API.Key,
		SystemID:     cfg.API.SystemID,
		Timeout:      cfg.Timeout(),
		Retry:        cfg.RetryPolicy(),
		Charset:      charset,
		SafetyMargin: cfg.SafetyMargin(),
		Logger:       logger,
		Metrics:      client.NewMetrics(reg),
	})
	if err != nil {
		return fmt.Errorf("unable to create API client: %w", err)
	}
	logger.Infof("Using API endpoint: %s (charset: %s, requests per hour: %d)",
		cfg.API.BaseURL, charset.Name(), cfg.API.RequestsPerHour)

	store := job.NewStore(cfg.Server.QueueSize, nil)
	job.NewQueueLengthGauge(reg, store)
	svc := pvoutput.NewService(c, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newWorker(store, svc, newLimiter(cfg.API.RequestsPerHour), logger)
	workerDone := make(chan struct{})
	go func() {
		w.run(ctx)
		close(workerDone)
	}()

	handler := httpapi.NewHandler(store, nil, logger)
	accessLog := zap.NewStdLog(logger.Desugar()).Writer()
	router := httpapi.SetupRouter(handler, cfg.Server.APIKey, reg, accessLog)

	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server starting on port: %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutting down...")
	case err := <-serverErr:
		return fmt.Errorf("unable to start HTTP server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Interrupts a running job, including a pending quota wait
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %s", err)
	}
	<-workerDone

	logger.Info("Server stopped")
	return nil
}
