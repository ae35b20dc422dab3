package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"harrisrecords/internal/entity"
	"harrisrecords/internal/ocr"
)

// DocumentFetcher retrieves a document to local scratch storage.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url, fileNumber string) (path string, cleanup func(), err error)
}

// TextExtractor produces per-page text for a local document.
type TextExtractor interface {
	ExtractPDF(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// AddressExtractor flattens raw document text into a single-line address,
// "" when the text yields none.
type AddressExtractor interface {
	ExtractAddress(ctx context.Context, text string) (string, error)
}

// Searcher resolves a batch of records through the interactive property
// search.
type Searcher interface {
	SearchBatch(ctx context.Context, records []entity.InputRecord) ([]entity.ResolvedAddress, error)
}

// ProgressFunc receives advisory progress. It must be cheap and safe to call
// frequently; its return is ignored (cancellation travels through the
// context instead).
type ProgressFunc func(fraction float64, message string)

// Config tunes the orchestrator's batching.
type Config struct {
	// DocBatchSize is kept small (2-5): the binding constraint in the
	// document phase is the extraction service's requests-per-minute
	// ceiling, not local CPU or IO.
	DocBatchSize int
	// SearchBatchSize balances browser launch overhead against memory; the
	// driver parallelizes across its tab pool within each sub-batch.
	SearchBatchSize int
	// PageCeiling skips extraction for documents above this page count;
	// such records go straight to the search fallback.
	PageCeiling int
	// DebugDir, when set, receives per-record OCR text dumps.
	DebugDir string
}

func (c *Config) applyDefaults() {
	if c.DocBatchSize <= 0 {
		c.DocBatchSize = 3
	}
	if c.SearchBatchSize <= 0 {
		c.SearchBatchSize = 10
	}
	if c.PageCeiling <= 0 {
		c.PageCeiling = 7
	}
}

// document phase reports progress in [0, 0.6), search phase in [0.6, 1.0]
const docPhaseShare = 0.6

// Orchestrator runs the two-stage address-resolution pipeline over a batch
// of scraped records.
type Orchestrator struct {
	fetcher  DocumentFetcher
	ocr      TextExtractor
	llm      AddressExtractor
	searcher Searcher
	cfg      Config
	logger   *slog.Logger
}

func NewOrchestrator(fetcher DocumentFetcher, textExtractor TextExtractor, addressExtractor AddressExtractor, searcher Searcher, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Orchestrator{
		fetcher:  fetcher,
		ocr:      textExtractor,
		llm:      addressExtractor,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Resolve produces one ResolvedAddress per valid input record. Records with
// a document are attempted through download → OCR → extraction first; every
// record that does not come out of that stage with an address joins the
// interactive-search fallback set. A record that neither stage resolves is
// emitted with SourceUnresolved rather than dropped.
//
// Per-record failures degrade that record and never abort the batch; the
// returned error is non-nil only for run-level conditions (the search
// driver being unable to open any tab). Partial results accumulated before
// such a failure are still returned.
func (o *Orchestrator) Resolve(ctx context.Context, records []entity.InputRecord, progress ProgressFunc) ([]entity.ResolvedAddress, error) {
	start := time.Now()
	if progress == nil {
		progress = func(float64, string) {}
	}

	valid := make([]entity.InputRecord, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			o.logger.Error("resolve.record.invalid", "file_number", rec.FileNumber, "error", err)
			continue
		}
		valid = append(valid, rec)
	}

	withDoc, withoutDoc := partition(valid)
	o.logger.Info("resolve.partition",
		"total", len(valid),
		"with_document", len(withDoc),
		"without_document", len(withoutDoc),
	)

	docAddresses := o.runDocumentPhase(ctx, withDoc, progress)

	// Fallback set: records without a document plus records whose document
	// produced no address, in input order, each exactly once.
	var fallback []entity.InputRecord
	for _, rec := range valid {
		if !rec.HasDocument() || docAddresses[rec.FileNumber] == "" {
			fallback = append(fallback, rec)
		}
	}

	searchAddresses, searchErr := o.runSearchPhase(ctx, fallback, progress)

	out := make([]entity.ResolvedAddress, 0, len(valid))
	resolvedDocs, resolvedSearch := 0, 0
	for _, rec := range valid {
		if addr := docAddresses[rec.FileNumber]; addr != "" {
			out = append(out, entity.NewResolvedAddress(rec, addr, entity.SourceDocumentExtraction))
			resolvedDocs++
			continue
		}
		if res, ok := searchAddresses[rec.FileNumber]; ok && res.Resolved() {
			out = append(out, res)
			resolvedSearch++
			continue
		}
		out = append(out, entity.NewResolvedAddress(rec, "", entity.SourceUnresolved))
	}

	o.logger.Info("resolve.done",
		"records", len(valid),
		"resolved_documents", resolvedDocs,
		"resolved_search", resolvedSearch,
		"unresolved", len(valid)-resolvedDocs-resolvedSearch,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	progress(1.0, fmt.Sprintf("Resolved %d/%d records", resolvedDocs+resolvedSearch, len(valid)))

	return out, searchErr
}

func partition(records []entity.InputRecord) (withDoc, withoutDoc []entity.InputRecord) {
	for _, rec := range records {
		if rec.HasDocument() {
			withDoc = append(withDoc, rec)
		} else {
			withoutDoc = append(withoutDoc, rec)
		}
	}
	return withDoc, withoutDoc
}

// runDocumentPhase processes records in fixed-size concurrent sub-batches
// and returns the addresses found, keyed by file number. Workers write to
// their own slot; the map is assembled after each sub-batch completes.
func (o *Orchestrator) runDocumentPhase(ctx context.Context, records []entity.InputRecord, progress ProgressFunc) map[string]string {
	addresses := make(map[string]string, len(records))
	if len(records) == 0 {
		progress(docPhaseShare, "Documents processed 0/0")
		return addresses
	}

	processed := 0
	for batchStart := 0; batchStart < len(records); batchStart += o.cfg.DocBatchSize {
		if ctx.Err() != nil {
			o.logger.Warn("resolve.documents.cancelled", "processed", processed)
			return addresses
		}
		end := batchStart + o.cfg.DocBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[batchStart:end]

		results := make([]string, len(batch))
		var wg sync.WaitGroup
		for i, rec := range batch {
			wg.Add(1)
			go func(slot int, rec entity.InputRecord) {
				defer wg.Done()
				results[slot] = o.extractFromDocument(ctx, rec)
			}(i, rec)
		}
		wg.Wait()

		for i, rec := range batch {
			if results[i] != "" {
				addresses[rec.FileNumber] = results[i]
			}
		}
		processed += len(batch)
		progress(
			docPhaseShare*float64(processed)/float64(len(records)),
			fmt.Sprintf("Documents processed %d/%d", processed, len(records)),
		)
	}
	return addresses
}

// extractFromDocument runs download → OCR → extraction for one record. Every
// failure mode degrades to "" so the record flows to the search fallback.
func (o *Orchestrator) extractFromDocument(ctx context.Context, rec entity.InputRecord) string {
	path, cleanup, err := o.fetcher.Fetch(ctx, rec.DocumentURL, rec.FileNumber)
	if err != nil {
		o.logger.Warn("resolve.document.download_failed", "file_number", rec.FileNumber, "error", err)
		return ""
	}
	defer cleanup()

	res, err := o.ocr.ExtractPDF(ctx, path)
	if err != nil {
		o.logger.Warn("resolve.document.ocr_failed", "file_number", rec.FileNumber, "error", err)
		return ""
	}
	if res.PageCount() > o.cfg.PageCeiling {
		o.logger.Info("resolve.document.page_ceiling",
			"file_number", rec.FileNumber,
			"pages", res.PageCount(),
			"ceiling", o.cfg.PageCeiling,
		)
		return ""
	}

	if o.cfg.DebugDir != "" {
		if _, err := ocr.WriteDebugArtifact(o.cfg.DebugDir, rec.FileNumber, res); err != nil {
			o.logger.Warn("resolve.document.debug_dump_failed", "file_number", rec.FileNumber, "error", err)
		}
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		o.logger.Info("resolve.document.no_text", "file_number", rec.FileNumber)
		return ""
	}

	addr, err := o.llm.ExtractAddress(ctx, text)
	if err != nil {
		o.logger.Warn("resolve.document.extract_failed", "file_number", rec.FileNumber, "error", err)
		return ""
	}
	if addr == "" {
		o.logger.Info("resolve.document.no_address", "file_number", rec.FileNumber)
	}
	return addr
}

// runSearchPhase feeds the fallback set to the search driver in sub-batches
// and returns results keyed by file number.
func (o *Orchestrator) runSearchPhase(ctx context.Context, records []entity.InputRecord, progress ProgressFunc) (map[string]entity.ResolvedAddress, error) {
	results := make(map[string]entity.ResolvedAddress, len(records))
	if len(records) == 0 {
		progress(1.0, "Searches processed 0/0")
		return results, nil
	}

	processed := 0
	for batchStart := 0; batchStart < len(records); batchStart += o.cfg.SearchBatchSize {
		if ctx.Err() != nil {
			o.logger.Warn("resolve.search.cancelled", "processed", processed)
			return results, nil
		}
		end := batchStart + o.cfg.SearchBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[batchStart:end]

		batchResults, err := o.searcher.SearchBatch(ctx, batch)
		if err != nil {
			return results, fmt.Errorf("search batch: %w", err)
		}
		for _, res := range batchResults {
			results[res.FileNumber] = res
		}
		processed += len(batch)
		progress(
			docPhaseShare+(1-docPhaseShare)*float64(processed)/float64(len(records)),
			fmt.Sprintf("Searches processed %d/%d", processed, len(records)),
		)
	}
	return results, nil
}
