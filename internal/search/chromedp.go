package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Headers sent by every tab; the search site rejects obvious non-browser
// traffic.
var browserHeaders = map[string]interface{}{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/139.0.0.0 Safari/537.36",
	"Accept-Language": "en-GB,en-US;q=0.9,en;q=0.8,fr;q=0.7",
	"Accept":          "*/*",
}

// Browser owns one headless Chrome process; tabs for the worker pool are
// child contexts of the browser context.
type Browser struct {
	browserCtx context.Context
	cancels    []context.CancelFunc
	logger     *slog.Logger
}

type BrowserConfig struct {
	Headless bool
}

// NewBrowser launches the Chrome process. The returned Browser implements
// SessionPool.
func NewBrowser(ctx context.Context, cfg BrowserConfig, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Force the browser to start now so launch failures surface here rather
	// than inside the first worker.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	logger.Info("search.browser.launched", "headless", cfg.Headless)
	return &Browser{
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{cancelBrowser, cancelAlloc},
		logger:     logger,
	}, nil
}

// NewSession opens a fresh tab.
func (b *Browser) NewSession(_ context.Context) (Session, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers(browserHeaders)),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &tabSession{ctx: tabCtx, cancel: cancel}, nil
}

// Close tears down every tab and the browser process.
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
}

type tabSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by the caller's deadline when one
// is set.
func (s *tabSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *tabSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *tabSession) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *tabSession) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func (s *tabSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *tabSession) PressEnter(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
}

func (s *tabSession) Content(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *tabSession) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery))
	return text, err
}

func (s *tabSession) Texts(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	expr := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.innerText)`, selector)
	err := s.run(ctx, chromedp.Evaluate(expr, &texts))
	return texts, err
}

func (s *tabSession) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	err := s.run(ctx, chromedp.Evaluate(expr, &n))
	return n, err
}

func (s *tabSession) Close() error {
	s.cancel()
	return nil
}
