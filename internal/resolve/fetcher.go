package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Fetcher downloads instrument documents to local scratch storage.
type Fetcher struct {
	http       *http.Client
	scratchDir string
	logger     *slog.Logger
}

func NewFetcher(client *http.Client, scratchDir string, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{http: client, scratchDir: scratchDir, logger: logger}
}

// Fetch retrieves the document and returns the local path plus a cleanup
// func that removes it. An empty body counts as a failed download.
func (f *Fetcher) Fetch(ctx context.Context, url, fileNumber string) (string, func(), error) {
	start := time.Now()
	if err := os.MkdirAll(f.scratchDir, 0o755); err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download document: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("fetch.body_close_failed", "file_number", fileNumber, "error", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("download document: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.scratchDir, "doc-*.pdf")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("fetch.cleanup_failed", "path", tmp.Name(), "error", err)
		}
	}

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write document: %w", err)
	}
	if n == 0 {
		cleanup()
		return "", nil, fmt.Errorf("document body was empty")
	}

	f.logger.Info("fetch.ok",
		"file_number", fileNumber,
		"bytes", n,
		"path", filepath.Base(tmp.Name()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tmp.Name(), cleanup, nil
}
