package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
	"github.com/WullieT22/Invoice-to-PO/internal/extract"
	"github.com/WullieT22/Invoice-to-PO/internal/ingest"
	"github.com/WullieT22/Invoice-to-PO/internal/llm/openai"
	"github.com/WullieT22/Invoice-to-PO/internal/matching"
	"github.com/WullieT22/Invoice-to-PO/internal/reconcile"
	repo "github.com/WullieT22/Invoice-to-PO/internal/repository"
)

type report struct {
	File     string                  `json:"file"`
	Method   string                  `json:"method"`
	Warnings []string                `json:"warnings,omitempty"`
	Fields   entity.InvoiceFields    `json:"fields"`
	Invoice  *entity.Invoice         `json:"invoice,omitempty"`
	Outcome  *reconcile.MatchOutcome `json:"outcome,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	file := flag.String("file", "", "invoice text file (.txt or .csv)")
	dir := flag.String("dir", "", "ingest and match every invoice text file under this directory")
	dbURL := flag.String("db", "", "database URL, defaults to DB_URL")
	migrate := flag.Bool("migrate", false, "apply migrations before matching")
	extractOnly := flag.Bool("extract-only", false, "print extracted fields without matching")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	if (*file == "") == (*dir == "") {
		logger.Error("usage: match-file (-file <invoice.txt> | -dir <inbox>) [-db URL] [-migrate] [-extract-only]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if *dbURL != "" {
		cfg.Database.DSN = *dbURL
	}

	err = run(cfg, options{
		file:        *file,
		dir:         *dir,
		migrate:     *migrate,
		extractOnly: *extractOnly,
		timeout:     *timeout,
	}, logger)
	var cerr configError
	switch {
	case errors.As(err, &cerr):
		logger.Error("invalid config", "error", cerr.err)
		os.Exit(2)
	case err != nil:
		logger.Error("match-file failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	file, dir   string
	migrate     bool
	extractOnly bool
	timeout     time.Duration
}

type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }

// run does the work of main so deferred cleanup runs before the process exits.
func run(cfg *common.Config, opts options, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	files := extract.NewFileExtractor(nil, logger)
	var (
		res  extract.Result
		text string
		err  error
	)
	if opts.file != "" {
		res, text, err = files.Extract(ctx, opts.file)
		if err != nil {
			return fmt.Errorf("extract %s: %w", opts.file, err)
		}
		if opts.extractOnly {
			return emit(report{File: opts.file, Method: res.Method, Warnings: res.Warnings, Fields: res.Fields})
		}
	}

	if err := cfg.Validate(); err != nil {
		return configError{err}
	}
	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if opts.migrate {
		if err := repo.Migrate(db, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
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
	}
	mcfg := matching.DefaultConfig()
	mcfg.OracleTimeout = cfg.Matching.OracleTimeout
	mcfg.AllowSyntheticCandidate = cfg.Matching.AllowSyntheticCandidate

	svc := reconcile.NewService(
		matching.NewMatcher(oracle, mcfg, logger),
		repo.NewInvoiceRepository(db, logger),
		repo.NewCandidateRepository(db, logger),
		repo.NewMatchRecordRepository(db, logger),
		nil,
		reconcile.ConfigFrom(cfg.Matching),
		logger,
	)

	if opts.dir != "" {
		matchInline := func(ctx context.Context, id uuid.UUID) error {
			_, err := svc.MatchInvoice(ctx, id)
			return err
		}
		results, stats, err := ingest.NewFSIngestor(files, svc, matchInline, logger).IngestDirectory(ctx, opts.dir, true)
		if err != nil {
			return fmt.Errorf("ingest directory %s: %w", opts.dir, err)
		}
		return emit(dirReport{Dir: opts.dir, Stats: stats, Results: results})
	}

	out := report{File: opts.file, Method: res.Method, Warnings: res.Warnings, Fields: res.Fields}
	inv, err := svc.SubmitInvoice(ctx, res.Fields, text)
	if err != nil {
		return fmt.Errorf("submit invoice: %w", err)
	}
	out.Invoice = inv

	outcome, err := svc.MatchInvoice(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("match invoice %s: %w", inv.ID, err)
	}
	out.Outcome = outcome
	return emit(out)
}

type dirReport struct {
	Dir     string          `json:"dir"`
	Stats   ingest.DirStats `json:"stats"`
	Results []ingest.Result `json:"results"`
}

func emit(r any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
