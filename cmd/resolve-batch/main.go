package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"harrisrecords/internal/common"
	"harrisrecords/internal/entity"
	"harrisrecords/internal/export"
	"harrisrecords/internal/history"
	"harrisrecords/internal/llm"
	"harrisrecords/internal/llm/openai"
	"harrisrecords/internal/ocr"
	"harrisrecords/internal/resolve"
	"harrisrecords/internal/scraper"
	"harrisrecords/internal/search"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		types   = flag.String("types", "", "comma-separated instrument type codes, e.g. D,D/T (required)")
		fromStr = flag.String("from", "", "start date MM/DD/YYYY (required)")
		toStr   = flag.String("to", "", "end date MM/DD/YYYY (required)")
		out     = flag.String("out", "output.xlsx", "output XLSX file path")
	)
	flag.Parse()

	if *types == "" || *fromStr == "" || *toStr == "" {
		printError("Error: --types, --from and --to are required\n")
		flag.Usage()
		os.Exit(1)
	}
	instrumentTypes := strings.Split(*types, ",")
	for i := range instrumentTypes {
		instrumentTypes[i] = strings.TrimSpace(instrumentTypes[i])
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	client, err := scraper.NewClient(cfg.Scraper, logger)
	if err != nil {
		logger.Error("failed to create scraper client", "error", err)
		os.Exit(1)
	}
	if err := client.Login(ctx); err != nil {
		logger.Error("county clerk login failed", "error", err)
		os.Exit(1)
	}

	var records []entity.InputRecord
	for _, it := range instrumentTypes {
		recs, err := client.ScrapeRecords(ctx, it, *fromStr, *toStr)
		if err != nil {
			logger.Error("scrape failed", "instrument_type", it, "error", err)
			os.Exit(1)
		}
		records = append(records, recs...)
	}
	logger.Info("scrape complete", "records", len(records))
	if len(records) == 0 {
		fmt.Println("No records found for the given parameters.")
		return
	}

	browser, err := search.NewBrowser(ctx, search.BrowserConfig{Headless: cfg.Search.Headless}, logger)
	if err != nil {
		logger.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	driver := search.NewDriver(browser, search.Config{
		BaseURL:     cfg.Search.BaseURL,
		NumTabs:     cfg.Search.NumTabs,
		WaitTimeout: cfg.Search.WaitTimeout,
	}, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		DPI:         cfg.OCR.DPI,
		PSM:         cfg.OCR.PSM,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	openaiClient := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	retrier := llm.NewRetrier(openaiClient, llm.RetryPolicy{
		MaxAttempts: cfg.LLM.MaxAttempts,
		Backoff:     llm.DefaultRetryPolicy().Backoff,
	}, logger)

	fetcher := resolve.NewFetcher(&http.Client{Timeout: cfg.Scraper.Timeout}, cfg.Resolve.ScratchDir, logger)
	orchestrator := resolve.NewOrchestrator(fetcher, extractor, retrier, driver, resolve.Config{
		DocBatchSize:    cfg.Resolve.DocBatchSize,
		SearchBatchSize: cfg.Resolve.SearchBatchSize,
		PageCeiling:     cfg.Resolve.PageCeiling,
		DebugDir:        cfg.OCR.DebugDir,
	}, logger)

	runID := uuid.NewString()
	dateRange := fmt.Sprintf("%s - %s", *fromStr, *toStr)
	if err := store.StartRun(ctx, runID, instrumentTypes, dateRange); err != nil {
		logger.Warn("failed to record run start", "error", err)
	}

	results, resolveErr := orchestrator.Resolve(ctx, records, func(fraction float64, message string) {
		fmt.Printf("[%5.1f%%] %s\n", fraction*100, message)
	})

	resolved := 0
	for _, r := range results {
		if r.Resolved() {
			resolved++
		}
	}
	if len(results) > 0 {
		if err := store.SaveResults(ctx, runID, results); err != nil {
			logger.Warn("failed to save results", "error", err)
		}
		if err := store.UpdateProgress(ctx, runID, len(records), resolved); err != nil {
			logger.Warn("failed to update progress", "error", err)
		}
	}
	if resolveErr != nil {
		_ = store.CompleteRun(ctx, runID, history.StatusFailed, resolveErr.Error())
		logger.Error("resolve failed", "error", resolveErr)
		os.Exit(1)
	}
	if err := store.CompleteRun(ctx, runID, history.StatusCompleted, ""); err != nil {
		logger.Warn("failed to record run completion", "error", err)
	}

	data, err := export.NewService(logger).ResultsXLSX(results)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Resolved %d/%d records. Results written to %s (run %s).\n",
		resolved, len(results), *out, runID)
}
