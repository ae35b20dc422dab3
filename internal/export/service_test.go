package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"harrisrecords/internal/entity"
)

func TestResultsXLSX(t *testing.T) {
	results := []entity.ResolvedAddress{
		{
			FileNumber:          "RP-1",
			Grantor:             "DOE JANE",
			Grantee:             "SMITH JOHN",
			InstrumentTypeLabel: "Deed",
			RecordingDate:       "01/15/2024",
			FilmCode:            "RP-2024-0015512",
			LegalDescription:    "Desc: OAK FOREST",
			PropertyAddress:     "100 Main St, Houston, TX",
			Source:              entity.SourceDocumentExtraction,
		},
		{
			FileNumber: "RP-2",
			Grantee:    "GARCIA MARIA",
			Source:     entity.SourceUnresolved,
		},
	}

	data, err := NewService(nil).ResultsXLSX(results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(rows))
	}
	if rows[0][0] != "File No" || rows[0][7] != "Property Address" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "RP-1" || rows[1][7] != "100 Main St, Houston, TX" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[1][8] != string(entity.SourceDocumentExtraction) {
		t.Errorf("source cell = %q", rows[1][8])
	}
	// unresolved rows are present with an empty address cell
	if rows[2][0] != "RP-2" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestResultsXLSXEmpty(t *testing.T) {
	data, err := NewService(nil).ResultsXLSX(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want header only", len(rows))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 140); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(string(long), 140)
	if len([]rune(got)) != 140 {
		t.Errorf("truncated length = %d runes", len([]rune(got)))
	}
}
