package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"harrisrecords/internal/entity"
	"harrisrecords/internal/ocr"
)

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []string
	fail    map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, fileNumber string) (string, func(), error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, fileNumber)
	f.mu.Unlock()
	if f.fail[fileNumber] {
		return "", nil, errors.New("download failed")
	}
	return "/tmp/" + fileNumber + ".pdf", func() {}, nil
}

type fakeOCR struct {
	pages map[string]int // path -> page count, default 1
	text  map[string]string
}

func (f *fakeOCR) ExtractPDF(ctx context.Context, path string) (ocr.ExtractionResult, error) {
	n := 1
	if f.pages != nil {
		if p, ok := f.pages[path]; ok {
			n = p
		}
	}
	text := "WARRANTY DEED " + path
	if f.text != nil {
		if t, ok := f.text[path]; ok {
			text = t
		}
	}
	res := ocr.ExtractionResult{}
	for i := 0; i < n; i++ {
		res.Pages = append(res.Pages, ocr.PageText{Page: i + 1, Text: text})
	}
	return res, nil
}

type fakeLLM struct {
	mu        sync.Mutex
	calls     int
	addresses map[string]string // substring of text -> address
	err       error
}

func (f *fakeLLM) ExtractAddress(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for key, addr := range f.addresses {
		if strings.Contains(text, key) {
			return addr, nil
		}
	}
	return "", nil
}

type fakeSearcher struct {
	mu        sync.Mutex
	searched  []string
	addresses map[string]string // file number -> address
	err       error
}

func (f *fakeSearcher) SearchBatch(ctx context.Context, records []entity.InputRecord) ([]entity.ResolvedAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.ResolvedAddress
	for _, rec := range records {
		f.searched = append(f.searched, rec.FileNumber)
		addr := f.addresses[rec.FileNumber]
		source := entity.SourceInteractiveSearch
		if addr == "" {
			source = entity.SourceUnresolved
		}
		out = append(out, entity.NewResolvedAddress(rec, addr, source))
	}
	return out, nil
}

func docRecord(fileNumber string) entity.InputRecord {
	return entity.InputRecord{
		FileNumber:   fileNumber,
		GranteeNames: []string{"SMITH JOHN"},
		DocumentURL:  "https://example.test/docs/" + fileNumber + ".pdf",
	}
}

func searchRecord(fileNumber string) entity.InputRecord {
	return entity.InputRecord{
		FileNumber:   fileNumber,
		GranteeNames: []string{"SMITH JOHN"},
	}
}

func newTestOrchestrator(f *fakeFetcher, o *fakeOCR, l *fakeLLM, s *fakeSearcher, cfg Config) *Orchestrator {
	return NewOrchestrator(f, o, l, s, cfg, nil)
}

func TestResolvePartitionsBySource(t *testing.T) {
	records := []entity.InputRecord{
		docRecord("RP-1"),
		searchRecord("RP-2"),
		docRecord("RP-3"),
	}
	llm := &fakeLLM{addresses: map[string]string{
		"RP-1": "100 Main St, Houston, TX",
		"RP-3": "300 Oak Ave, Katy, TX",
	}}
	searcher := &fakeSearcher{addresses: map[string]string{
		"RP-2": "200 Elm Dr, Houston, TX",
	}}
	orc := newTestOrchestrator(&fakeFetcher{}, &fakeOCR{}, llm, searcher, Config{})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].Source != entity.SourceDocumentExtraction || results[0].PropertyAddress != "100 Main St, Houston, TX" {
		t.Errorf("RP-1 = %+v, want document extraction", results[0])
	}
	if results[1].Source != entity.SourceInteractiveSearch || results[1].PropertyAddress != "200 Elm Dr, Houston, TX" {
		t.Errorf("RP-2 = %+v, want interactive search", results[1])
	}
	if results[2].Source != entity.SourceDocumentExtraction {
		t.Errorf("RP-3 = %+v, want document extraction", results[2])
	}

	// the record with no document must never hit the document stage
	if len(searcher.searched) != 1 || searcher.searched[0] != "RP-2" {
		t.Errorf("searched = %v, want [RP-2]", searcher.searched)
	}
}

func TestResolveOutputPreservesInputOrder(t *testing.T) {
	records := []entity.InputRecord{
		searchRecord("RP-3"),
		docRecord("RP-1"),
		searchRecord("RP-2"),
	}
	llm := &fakeLLM{addresses: map[string]string{"RP-1": "1 A St"}}
	searcher := &fakeSearcher{addresses: map[string]string{"RP-2": "2 B St", "RP-3": "3 C St"}}
	orc := newTestOrchestrator(&fakeFetcher{}, &fakeOCR{}, llm, searcher, Config{})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"RP-3", "RP-1", "RP-2"}
	for i, fn := range want {
		if results[i].FileNumber != fn {
			t.Errorf("results[%d] = %s, want %s", i, results[i].FileNumber, fn)
		}
	}
}

func TestResolveFailedExtractionFallsBackExactlyOnce(t *testing.T) {
	records := []entity.InputRecord{
		docRecord("RP-1"), // extraction finds nothing
		docRecord("RP-2"), // download fails
		docRecord("RP-3"), // extraction succeeds
	}
	fetcher := &fakeFetcher{fail: map[string]bool{"RP-2": true}}
	llm := &fakeLLM{addresses: map[string]string{"RP-3": "3 C St, Houston, TX"}}
	searcher := &fakeSearcher{addresses: map[string]string{
		"RP-1": "1 A St, Houston, TX",
		"RP-2": "2 B St, Houston, TX",
	}}
	orc := newTestOrchestrator(fetcher, &fakeOCR{}, llm, searcher, Config{})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := make(map[string]int)
	for _, fn := range searcher.searched {
		counts[fn]++
	}
	if counts["RP-1"] != 1 || counts["RP-2"] != 1 {
		t.Errorf("fallback counts = %v, want RP-1 and RP-2 exactly once", counts)
	}
	if counts["RP-3"] != 0 {
		t.Errorf("RP-3 resolved from its document but was searched anyway")
	}
	for _, r := range results {
		if !r.Resolved() {
			t.Errorf("%s unresolved: %+v", r.FileNumber, r)
		}
	}
	if results[2].Source != entity.SourceDocumentExtraction {
		t.Errorf("RP-3 source = %s, want document extraction", results[2].Source)
	}
}

func TestResolvePageCeilingSkipsExtraction(t *testing.T) {
	records := []entity.InputRecord{docRecord("RP-1")}
	fakeOCR := &fakeOCR{pages: map[string]int{"/tmp/RP-1.pdf": 9}}
	llm := &fakeLLM{addresses: map[string]string{"RP-1": "should not be reached"}}
	searcher := &fakeSearcher{addresses: map[string]string{"RP-1": "1 A St, Houston, TX"}}
	orc := newTestOrchestrator(&fakeFetcher{}, fakeOCR, llm, searcher, Config{PageCeiling: 7})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 0 {
		t.Errorf("extraction called %d times for an over-ceiling document", llm.calls)
	}
	if results[0].Source != entity.SourceInteractiveSearch {
		t.Errorf("source = %s, want interactive search fallback", results[0].Source)
	}
}

func TestResolveEmitsUnresolvedRecords(t *testing.T) {
	records := []entity.InputRecord{searchRecord("RP-1")}
	searcher := &fakeSearcher{} // finds nothing
	orc := newTestOrchestrator(&fakeFetcher{}, &fakeOCR{}, &fakeLLM{}, searcher, Config{})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (unresolved records are kept)", len(results))
	}
	if results[0].Source != entity.SourceUnresolved || results[0].PropertyAddress != "" {
		t.Errorf("result = %+v, want unresolved with empty address", results[0])
	}
}

func TestResolveSearchFailureReturnsPartialResults(t *testing.T) {
	records := []entity.InputRecord{
		docRecord("RP-1"),
		searchRecord("RP-2"),
	}
	llm := &fakeLLM{addresses: map[string]string{"RP-1": "1 A St, Houston, TX"}}
	searcher := &fakeSearcher{err: errors.New("no browser tabs available")}
	orc := newTestOrchestrator(&fakeFetcher{}, &fakeOCR{}, llm, searcher, Config{})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err == nil {
		t.Fatal("expected run-level error from search stage")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (document results plus unresolved)", len(results))
	}
	if results[0].Source != entity.SourceDocumentExtraction {
		t.Errorf("RP-1 source = %s, want document extraction", results[0].Source)
	}
	if results[1].Source != entity.SourceUnresolved {
		t.Errorf("RP-2 source = %s, want unresolved", results[1].Source)
	}
}

func TestResolveSkipsInvalidRecords(t *testing.T) {
	records := []entity.InputRecord{
		{GranteeNames: []string{"NOBODY"}}, // no file number
		searchRecord("RP-1"),
	}
	searcher := &fakeSearcher{addresses: map[string]string{"RP-1": "1 A St"}}
	orc := newTestOrchestrator(&fakeFetcher{}, &fakeOCR{}, &fakeLLM{}, searcher, Config{})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].FileNumber != "RP-1" {
		t.Fatalf("results = %+v, want only RP-1", results)
	}
}

func TestResolveProgressIsMonotonic(t *testing.T) {
	var records []entity.InputRecord
	for _, fn := range []string{"RP-1", "RP-2", "RP-3", "RP-4", "RP-5", "RP-6", "RP-7"} {
		records = append(records, docRecord(fn))
	}
	llm := &fakeLLM{} // nothing extracted, everything falls back
	searcher := &fakeSearcher{}
	orc := newTestOrchestrator(&fakeFetcher{}, &fakeOCR{}, llm, searcher, Config{
		DocBatchSize:    3,
		SearchBatchSize: 2,
	})

	var fractions []float64
	_, err := orc.Resolve(context.Background(), records, func(fraction float64, message string) {
		fractions = append(fractions, fraction)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fractions) == 0 {
		t.Fatal("progress callback never invoked")
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress went backwards: %v", fractions)
		}
	}
	if last := fractions[len(fractions)-1]; last != 1.0 {
		t.Fatalf("final fraction = %v, want 1.0", last)
	}
	// document phase stays in its share of the range
	if fractions[0] > 0.6 {
		t.Fatalf("first document-phase fraction %v exceeds 0.6", fractions[0])
	}
}

func TestResolveDocumentBatchesAreBounded(t *testing.T) {
	var records []entity.InputRecord
	for _, fn := range []string{"RP-1", "RP-2", "RP-3", "RP-4", "RP-5"} {
		records = append(records, docRecord(fn))
	}
	fetcher := &fakeFetcher{}
	llm := &fakeLLM{addresses: map[string]string{"RP": "1 Batch St"}}
	orc := newTestOrchestrator(fetcher, &fakeOCR{}, llm, &fakeSearcher{}, Config{DocBatchSize: 2})

	results, err := orc.Resolve(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	if len(fetcher.fetched) != 5 {
		t.Fatalf("fetched %d documents, want 5", len(fetcher.fetched))
	}
}

func TestResolveCancelledContextStopsEarly(t *testing.T) {
	var records []entity.InputRecord
	for _, fn := range []string{"RP-1", "RP-2", "RP-3"} {
		records = append(records, searchRecord(fn))
	}
	searcher := &fakeSearcher{}
	orc := newTestOrchestrator(&fakeFetcher{}, &fakeOCR{}, &fakeLLM{}, searcher, Config{SearchBatchSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := orc.Resolve(ctx, records, nil)
	if err != nil {
		t.Fatalf("cancellation is not a run-level failure: %v", err)
	}
	if len(searcher.searched) != 0 {
		t.Fatalf("searched %v after cancellation", searcher.searched)
	}
	// every record still comes back, unresolved
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Source != entity.SourceUnresolved {
			t.Errorf("%s source = %s, want unresolved", r.FileNumber, r.Source)
		}
	}
}
