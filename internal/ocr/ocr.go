package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI, default 300
	PSM           int    // page segmentation mode; 6 suits the uniform blocks on recorded instruments
	TessdataDir   string
}

// PageText is the per-page OCR output for one document.
type PageText struct {
	Page      int    `json:"page_number"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
	CharCount int    `json:"char_count"`
}

// ExtractionResult is the OCR output for a whole document.
type ExtractionResult struct {
	Pages    []PageText
	Duration time.Duration
	Warnings []string
}

// PageCount returns the number of rendered pages.
func (r ExtractionResult) PageCount() int { return len(r.Pages) }

// Text joins all page texts with a space, the shape the address extractor expects.
func (r ExtractionResult) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		if strings.TrimSpace(p.Text) != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, " ")
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// ExtractPDF rasterizes the document and OCRs every page. A document that
// cannot be rendered at all is a hard failure; a page that fails OCR is
// recorded as a warning and skipped.
func (e *Extractor) ExtractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "path", path, "dpi", e.cfg.DPI)

	tmpDir, err := os.MkdirTemp("", "hr-pp-*")
	if err != nil {
		return ExtractionResult{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmpdir.remove_failed", "path", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return ExtractionResult{Warnings: []string{string(errb)}}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return ExtractionResult{Warnings: []string{"pdftoppm produced no images"}}, fmt.Errorf("no pages rendered")
	}

	res := ExtractionResult{Pages: make([]PageText, 0, len(matches))}
	for i, img := range matches {
		txt, err := e.tesseractOCR(ctx, img)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			res.Pages = append(res.Pages, PageText{Page: i + 1})
			continue
		}
		res.Pages = append(res.Pages, PageText{
			Page:      i + 1,
			Text:      txt,
			WordCount: len(strings.Fields(txt)),
			CharCount: len(txt),
		})
	}
	res.Duration = time.Since(start)

	e.logger.Info("ocr.extract.ok",
		"path", path,
		"pages", res.PageCount(),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang, "--psm", fmt.Sprintf("%d", e.cfg.PSM)}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang> --psm <n>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return strings.TrimSpace(string(out)), nil
}
