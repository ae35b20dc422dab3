package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"harrisrecords/internal/common"
	"harrisrecords/internal/llm"
	"harrisrecords/internal/llm/openai"
	"harrisrecords/internal/ocr"
)

// runocr extracts text from a single PDF and, when an OpenAI key is
// configured, runs address extraction on the result. Debugging tool for
// tuning OCR settings against problem documents.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <pdf-path>")
		os.Exit(2)
	}
	path := os.Args[1]
	if _, err := os.Stat(path); err != nil {
		logger.Error("cannot read input file", "path", path, "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		DPI:         cfg.OCR.DPI,
		PSM:         cfg.OCR.PSM,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	start := time.Now()
	res, err := extractor.ExtractPDF(ctx, path)
	if err != nil {
		logger.Error("ocr failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("ocr OK",
		"pages", res.PageCount(),
		"bytes", len(res.Text()),
		"warnings", len(res.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, w := range res.Warnings {
		logger.Warn("ocr warning", "warning", w)
	}

	if cfg.LLM.APIKey == "" {
		logger.Info("OPENAI_API_KEY not set, skipping address extraction")
		return
	}

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	retrier := llm.NewRetrier(client, llm.DefaultRetryPolicy(), logger)

	addr, err := retrier.ExtractAddress(ctx, res.Text())
	if err != nil {
		logger.Error("address extraction failed", "error", err)
		os.Exit(1)
	}
	if addr == "" {
		logger.Info("no address found in document")
		return
	}
	logger.Info("address extraction OK", "address", addr)
}
