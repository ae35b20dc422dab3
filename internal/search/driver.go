package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"harrisrecords/internal/entity"
)

// Config tunes the driver. NumTabs bounds concurrency against the target
// site; WaitTimeout bounds every selector wait so one stuck page cannot
// stall a tab.
type Config struct {
	BaseURL      string
	NumTabs      int
	WaitTimeout  time.Duration
	ProbeTimeout time.Duration // quick existence checks inside a ladder
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.NumTabs <= 0 {
		c.NumTabs = 5
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
}

// Driver resolves addresses by driving the public property search through a
// pool of browser tabs.
type Driver struct {
	pool   SessionPool
	cfg    Config
	logger *slog.Logger
}

func NewDriver(pool SessionPool, cfg Config, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Driver{pool: pool, cfg: cfg, logger: logger}
}

// SearchBatch runs every record through the property search. Tabs drain a
// shared queue so a slow search on one tab never blocks the others; the
// batch completes when the queue is empty and all in-flight work finished.
// Every input record yields exactly one result, resolved or not.
func (d *Driver) SearchBatch(ctx context.Context, records []entity.InputRecord) ([]entity.ResolvedAddress, error) {
	if len(records) == 0 {
		return nil, nil
	}

	queue := make(chan entity.InputRecord, len(records))
	for _, rec := range records {
		queue <- rec
	}
	close(queue)

	workers := d.cfg.NumTabs
	if workers > len(records) {
		workers = len(records)
	}

	perWorker := make([][]entity.ResolvedAddress, workers)
	var wg sync.WaitGroup
	started := 0
	for i := 0; i < workers; i++ {
		sess, err := d.pool.NewSession(ctx)
		if err != nil {
			d.logger.Error("search.tab.open_failed", "worker", i, "error", err)
			continue
		}
		started++
		wg.Add(1)
		go func(id int, s Session) {
			defer wg.Done()
			defer func() {
				if err := s.Close(); err != nil {
					d.logger.Warn("search.tab.close_failed", "worker", id, "error", err)
				}
			}()
			d.worker(ctx, id, s, queue, &perWorker[id])
		}(i, sess)
	}
	if started == 0 {
		return nil, fmt.Errorf("no browser tabs available")
	}
	wg.Wait()

	var out []entity.ResolvedAddress
	for _, rs := range perWorker {
		out = append(out, rs...)
	}
	return out, nil
}

// worker drains the queue. Cancellation is cooperative: the context is
// checked only at record boundaries, a search already in flight completes.
func (d *Driver) worker(ctx context.Context, id int, sess Session, queue <-chan entity.InputRecord, out *[]entity.ResolvedAddress) {
	d.logger.Info("search.worker.started", "worker", id)
	firstRun := true
	for {
		if ctx.Err() != nil {
			d.logger.Warn("search.worker.cancelled", "worker", id)
			return
		}
		rec, ok := <-queue
		if !ok {
			d.logger.Info("search.worker.done", "worker", id)
			return
		}
		*out = append(*out, d.searchRecord(ctx, sess, rec, firstRun))
		firstRun = false
	}
}

// searchRecord walks the record's name-variant ladder until a variant yields
// an address or the ladder is exhausted.
func (d *Driver) searchRecord(ctx context.Context, sess Session, rec entity.InputRecord, firstRun bool) entity.ResolvedAddress {
	owner := rec.PrimaryOwner()
	if owner == "" {
		d.logger.Warn("search.record.no_owner", "file_number", rec.FileNumber)
		return entity.NewResolvedAddress(rec, "", entity.SourceUnresolved)
	}

	if firstRun {
		if err := d.navigateHome(ctx, sess); err != nil {
			d.logger.Error("search.navigate_failed", "file_number", rec.FileNumber, "error", err)
			return entity.NewResolvedAddress(rec, "", entity.SourceUnresolved)
		}
	}

	variants := GenerateNameVariants(owner)
	d.logger.Info("search.record.start",
		"file_number", rec.FileNumber,
		"owner", owner,
		"legal_desc", CleanLegalDescription(rec.LegalDescription),
		"variants", len(variants),
	)

	for i, name := range variants {
		d.logger.Info("search.attempt",
			"file_number", rec.FileNumber,
			"attempt", i+1,
			"query", name,
		)
		addr, err := d.performSearch(ctx, sess, name)
		d.resetSearch(ctx, sess)
		if err != nil {
			// a failed attempt is a non-match for this variant, nothing more
			d.logger.Warn("search.attempt.error",
				"file_number", rec.FileNumber, "attempt", i+1, "error", err)
			continue
		}
		if addr != "" {
			d.logger.Info("search.attempt.ok",
				"file_number", rec.FileNumber,
				"attempt", i+1,
				"query", name,
				"address", addr,
			)
			return entity.NewResolvedAddress(rec, addr, entity.SourceInteractiveSearch)
		}
		d.logger.Info("search.attempt.no_match",
			"file_number", rec.FileNumber, "attempt", i+1, "query", name)
	}

	return entity.NewResolvedAddress(rec, "", entity.SourceUnresolved)
}

func (d *Driver) navigateHome(ctx context.Context, sess Session) error {
	navCtx, cancel := context.WithTimeout(ctx, d.cfg.WaitTimeout)
	defer cancel()
	return sess.Navigate(navCtx, d.cfg.BaseURL)
}

// performSearch submits one query and reads back the first result row's
// address. "" with a nil error means a clean no-match.
func (d *Driver) performSearch(ctx context.Context, sess Session, name string) (string, error) {
	input, err := d.firstVisible(ctx, sess, searchInputSelectors)
	if err != nil {
		return "", fmt.Errorf("search input not found: %w", err)
	}
	if err := sess.Fill(ctx, input, name); err != nil {
		return "", fmt.Errorf("fill search input: %w", err)
	}

	if !d.clickFirst(ctx, sess, searchButtonSelectors) {
		if err := sess.PressEnter(ctx, input); err != nil {
			return "", fmt.Errorf("submit search: %w", err)
		}
	}

	rowSel, state := d.awaitResults(ctx, sess)
	switch state {
	case resultsFound:
		return d.extractAddress(ctx, sess, rowSel), nil
	default:
		// no-results marker or timeout, both are a non-match
		return "", nil
	}
}

type resultState int

const (
	resultsPending resultState = iota
	resultsFound
	resultsEmpty
	resultsTimeout
)

// awaitResults polls the page until either a no-results marker or a results
// row shows up. The markers are checked first; an empty-result page can
// still contain a (headers only) table that would fool the row ladder.
func (d *Driver) awaitResults(ctx context.Context, sess Session) (string, resultState) {
	deadline := time.Now().Add(d.cfg.WaitTimeout)
	for {
		probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
		if html, err := sess.Content(probeCtx); err == nil {
			for _, marker := range noResultsMarkers {
				if strings.Contains(html, marker) {
					cancel()
					return "", resultsEmpty
				}
			}
		}
		for _, sel := range resultsTableSelectors {
			if n, err := sess.Count(probeCtx, sel); err == nil && n > 0 {
				cancel()
				return sel, resultsFound
			}
		}
		cancel()

		if time.Now().After(deadline) {
			return "", resultsTimeout
		}
		select {
		case <-ctx.Done():
			return "", resultsTimeout
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// extractAddress reads the address cell (3rd column) of the first result
// row, falling back to scanning every cell in that row for address-looking
// tokens when the structured read comes back empty.
func (d *Driver) extractAddress(ctx context.Context, sess Session, rowSel string) string {
	cellCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()

	if addr, err := sess.Text(cellCtx, rowSel+":first-child td:nth-child(3)"); err == nil {
		if a := strings.TrimSpace(addr); a != "" {
			return a
		}
	}

	cells, err := sess.Texts(cellCtx, rowSel+":first-child td")
	if err != nil || len(cells) == 0 {
		cells, err = sess.Texts(cellCtx, "table tbody tr:first-child td")
		if err != nil {
			return ""
		}
	}
	for _, cell := range cells {
		if looksLikeAddress(cell) {
			return strings.TrimSpace(cell)
		}
	}
	return ""
}

func looksLikeAddress(cell string) bool {
	if strings.TrimSpace(cell) == "" {
		return false
	}
	upper := strings.ToUpper(cell)
	for _, pattern := range addressPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// resetSearch puts the tab back on the initial search form: click a reset
// control if the page has one, otherwise re-navigate to the site root.
func (d *Driver) resetSearch(ctx context.Context, sess Session) {
	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()
	for _, sel := range resetSelectors {
		if n, err := sess.Count(probeCtx, sel); err == nil && n > 0 {
			if err := sess.Click(probeCtx, sel); err == nil {
				return
			}
		}
	}
	if err := d.navigateHome(ctx, sess); err != nil {
		d.logger.Warn("search.reset.navigate_failed", "error", err)
	}
}

func (d *Driver) firstVisible(ctx context.Context, sess Session, selectors []string) (string, error) {
	for _, sel := range selectors {
		waitCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
		err := sess.WaitVisible(waitCtx, sel)
		cancel()
		if err == nil {
			return sel, nil
		}
	}
	return "", fmt.Errorf("none of %d selectors matched", len(selectors))
}

func (d *Driver) clickFirst(ctx context.Context, sess Session, selectors []string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()
	for _, sel := range selectors {
		if n, err := sess.Count(probeCtx, sel); err == nil && n > 0 {
			if err := sess.Click(probeCtx, sel); err == nil {
				return true
			}
		}
	}
	return false
}
