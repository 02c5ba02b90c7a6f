package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/WullieT22/Invoice-to-PO/internal/async"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/export"
	"github.com/WullieT22/Invoice-to-PO/internal/ingest"
	"github.com/WullieT22/Invoice-to-PO/internal/llm/openai"
	"github.com/WullieT22/Invoice-to-PO/internal/matching"
	"github.com/WullieT22/Invoice-to-PO/internal/metrics"
	"github.com/WullieT22/Invoice-to-PO/internal/reconcile"
	repo "github.com/WullieT22/Invoice-to-PO/internal/repository"
	svc "github.com/WullieT22/Invoice-to-PO/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("matcherd stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until SIGINT or SIGTERM. Deferred cleanup runs before main exits.
func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := repo.Migrate(db, logger); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	var oracle matching.Oracle
	if cfg.OracleEnabled() {
		oracle = openai.NewClient(openai.Config{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			Timeout:           cfg.LLM.Timeout,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		}, logger)
		logger.Info("oracle enabled", "model", cfg.LLM.Model)
	} else {
		logger.Warn("OPENAI_API_KEY not set, matching uses the heuristic ranker only")
	}

	mcfg := matching.DefaultConfig()
	mcfg.OracleTimeout = cfg.Matching.OracleTimeout
	mcfg.AllowSyntheticCandidate = cfg.Matching.AllowSyntheticCandidate
	matcher := matching.NewMatcher(oracle, mcfg, logger)

	invoicesRepo := repo.NewInvoiceRepository(db, logger)
	candidatesRepo := repo.NewCandidateRepository(db, logger)
	recordsRepo := repo.NewMatchRecordRepository(db, logger)

	reconciler := reconcile.NewService(matcher, invoicesRepo, candidatesRepo, recordsRepo, nil,
		reconcile.ConfigFrom(cfg.Matching), logger)

	queue := async.NewMatchQueue(func(ctx context.Context, job async.Job) error {
		_, err := reconciler.MatchInvoice(ctx, job.InvoiceID)
		return err
	}, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithJobTimeout(cfg.Queue.JobTimeout),
	)
	exporter := export.NewService(recordsRepo, invoicesRepo, logger)

	if dir := cfg.Ingest.WatchDir; dir != "" {
		inbox := ingest.NewFSIngestor(nil, reconciler, func(ctx context.Context, id uuid.UUID) error {
			return queue.Enqueue(ctx, async.Job{InvoiceID: id, SubmittedAt: time.Now().UTC()})
		}, logger)
		go func() {
			err := ingest.Watch(ctx, ingest.WatchConfig{
				Roots:       []string{dir},
				InitialScan: cfg.Ingest.InitialScan,
				Debounce:    cfg.Ingest.Debounce,
			}, inbox)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("invoice inbox watcher stopped", "dir", dir, "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		queue.Shutdown(context.Background())
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(svc.UnaryRequestContext(logger)))
	svc.RegisterMatchingServiceServer(grpcServer, svc.NewMatchingService(reconciler, queue, exporter, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics serve error", "error", err)
		}
	}()

	logger.Info("matcherd listening", "addr", cfg.Server.GRPCAddr, "metrics_addr", cfg.Metrics.Addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", "error", err)
	}
	return nil
}
