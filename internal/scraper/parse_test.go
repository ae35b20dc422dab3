package scraper

import (
	"strings"
	"testing"
)

const resultsFixture = `
<html><body>
<table>
<tr class="header"><td>chrome</td></tr>
<tr class="odd">
  <td><input type="checkbox"></td>
  <td>RP-2024-100001</td>
  <td>01/15/2024</td>
  <td>D
Order Copy $2.00</td>
  <td>
    <table id="itemPlaceHolderContainer">
      <tr><td><b>Grantor</b></td><td><span>DOE JANE</span></td></tr>
      <tr><td><b>Grantee</b></td><td><span>SMITH JOHN</span></td></tr>
      <tr><td><b>Grantee</b></td><td><span>SMITH MARY</span></td></tr>
    </table>
  </td>
  <td><span>Desc: OAK FOREST</span><span>Lot: 12</span></td>
  <td>extra</td>
  <td><a href="RecordDetail.aspx?id=abc123">RP-2024-0015512</a></td>
  <td>3</td>
  <td>actions</td>
</tr>
<tr class="even">
  <td><input type="checkbox"></td>
  <td>RP-2024-100002</td>
  <td>01/16/2024</td>
  <td>D/T</td>
  <td>
    <table id="itemPlaceHolderContainer">
      <tr><td><b>Grantor</b></td><td><span>ACME HOLDINGS LLC</span></td></tr>
      <tr><td><b>Grantee</b></td><td><span>GARCIA MARIA</span></td></tr>
    </table>
  </td>
  <td><span>Desc: TIMBERGROVE</span></td>
  <td>extra</td>
  <td></td>
  <td>12</td>
  <td>actions</td>
</tr>
<tr class="odd">
  <td>too</td>
  <td>few</td>
  <td>cells</td>
</tr>
</table>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	records, err := ParseSearchResults(strings.NewReader(resultsFixture), "https://www.cclerk.hctx.net/Applications/WebSearch/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (malformed row skipped)", len(records))
	}

	r := records[0]
	if r.FileNumber != "RP-2024-100001" {
		t.Errorf("FileNumber = %q", r.FileNumber)
	}
	if r.RecordingDate != "01/15/2024" {
		t.Errorf("RecordingDate = %q", r.RecordingDate)
	}
	// only the first line of the type cell is the code
	if r.DocumentTypeCode != "D" {
		t.Errorf("DocumentTypeCode = %q", r.DocumentTypeCode)
	}
	if len(r.GrantorNames) != 1 || r.GrantorNames[0] != "DOE JANE" {
		t.Errorf("GrantorNames = %v", r.GrantorNames)
	}
	if len(r.GranteeNames) != 2 || r.GranteeNames[0] != "SMITH JOHN" {
		t.Errorf("GranteeNames = %v", r.GranteeNames)
	}
	if r.LegalDescription != "Desc: OAK FOREST Lot: 12" {
		t.Errorf("LegalDescription = %q", r.LegalDescription)
	}
	if r.FilmCode != "RP-2024-0015512" {
		t.Errorf("FilmCode = %q", r.FilmCode)
	}
	if r.PageCount != 3 {
		t.Errorf("PageCount = %d", r.PageCount)
	}
	want := "https://www.cclerk.hctx.net/Applications/WebSearch/RecordDetail.aspx?id=abc123"
	if r.DocumentURL != want {
		t.Errorf("DocumentURL = %q, want %q", r.DocumentURL, want)
	}
	if !r.HasDocument() {
		t.Error("record with a film-code link must report a document")
	}

	r2 := records[1]
	if r2.FileNumber != "RP-2024-100002" {
		t.Errorf("FileNumber = %q", r2.FileNumber)
	}
	// no film code, no document link
	if r2.FilmCode != "" || r2.DocumentURL != "" || r2.HasDocument() {
		t.Errorf("record without film code = %+v, want no document", r2)
	}
	if r2.PageCount != 12 {
		t.Errorf("PageCount = %d", r2.PageCount)
	}
	if r2.PrimaryOwner() != "GARCIA MARIA" {
		t.Errorf("PrimaryOwner = %q", r2.PrimaryOwner())
	}
}

func TestParseSearchResultsEmptyPage(t *testing.T) {
	records, err := ParseSearchResults(strings.NewReader("<html><body>No records.</body></html>"), "https://base/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records from an empty page", len(records))
	}
}
