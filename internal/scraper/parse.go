package scraper

import (
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harrisrecords/internal/common"
	"harrisrecords/internal/entity"
)

// ParseSearchResults extracts instrument records from a WebSearch results
// page. Result rows alternate the "odd" and "even" classes; anything else
// in the table is chrome and is ignored. baseURL is prepended to relative
// document links.
func ParseSearchResults(r io.Reader, baseURL string) ([]entity.InputRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, common.NewAppError("SCRAPER_PARSE_FAILED", "failed to parse search results HTML", err)
	}

	var records []entity.InputRecord
	doc.Find("tr.odd, tr.even").Each(func(_ int, row *goquery.Selection) {
		if rec, ok := parseRow(row, baseURL); ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

// Result row cell layout, by direct-child td index:
//
//	1  file number
//	2  file date
//	3  document type (first line; the rest is pricing chrome)
//	4  parties sub-table
//	5  legal description spans
//	7  film code, with the document link when one exists
//	-2 page count
func parseRow(row *goquery.Selection, baseURL string) (entity.InputRecord, bool) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < 6 {
		return entity.InputRecord{}, false
	}

	rec := entity.InputRecord{
		FileNumber:       cellText(cells, 1),
		RecordingDate:    cellText(cells, 2),
		DocumentTypeCode: firstLine(cellText(cells, 3)),
		FilmCode:         cellText(cells, 7),
	}
	rec.GrantorNames, rec.GranteeNames = parseParties(cells.Eq(4))
	rec.LegalDescription = parseLegalDescription(cells.Eq(5))

	if pages := cellText(cells, cells.Length()-2); pages != "" {
		if n, err := strconv.Atoi(pages); err == nil {
			rec.PageCount = n
		}
	}

	if rec.FilmCode != "" {
		if href, ok := cells.Eq(7).Find("a").Attr("href"); ok && href != "" {
			rec.DocumentURL = baseURL + href
		}
	}

	return rec, rec.FileNumber != ""
}

// parseParties reads the nested party table. Each row pairs a bold label
// ("Grantor" or "Grantee") with a span carrying the name.
func parseParties(cell *goquery.Selection) (grantors, grantees []string) {
	cell.Find("table#itemPlaceHolderContainer tr").Each(func(_ int, tr *goquery.Selection) {
		label := strings.TrimSpace(tr.Find("b").First().Text())
		name := strings.TrimSpace(tr.Find("span").First().Text())
		if label == "" || name == "" {
			return
		}
		switch {
		case strings.Contains(label, "Grantor"):
			grantors = append(grantors, name)
		case strings.Contains(label, "Grantee"):
			grantees = append(grantees, name)
		}
	})
	return grantors, grantees
}

func parseLegalDescription(cell *goquery.Selection) string {
	var parts []string
	cell.Find("span").Each(func(_ int, span *goquery.Selection) {
		if text := strings.TrimSpace(span.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
