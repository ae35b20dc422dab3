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

	"harrisrecords/internal/common"
	"harrisrecords/internal/export"
	"harrisrecords/internal/history"
	"harrisrecords/internal/llm"
	"harrisrecords/internal/llm/openai"
	"harrisrecords/internal/ocr"
	"harrisrecords/internal/resolve"
	"harrisrecords/internal/scraper"
	"harrisrecords/internal/search"
	"harrisrecords/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	loginCtx, cancel := context.WithTimeout(ctx, cfg.Scraper.Timeout)
	err = client.Login(loginCtx)
	cancel()
	if err != nil {
		logger.Error("county clerk login failed", "error", err)
		os.Exit(1)
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

	srv := server.New(client, orchestrator, store, export.NewService(logger), logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("http.serving", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
