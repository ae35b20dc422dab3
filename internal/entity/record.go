package entity

import (
	"strings"

	"harrisrecords/internal/common"
)

// InputRecord is one scraped instrument row from the county records site.
// Records are immutable once produced by the scraper.
type InputRecord struct {
	FileNumber       string   `json:"file_number"`
	GrantorNames     []string `json:"grantor_names"`
	GranteeNames     []string `json:"grantee_names"` // first entry is the primary owner
	DocumentTypeCode string   `json:"document_type_code"`
	RecordingDate    string   `json:"recording_date"` // MM/DD/YYYY as recorded
	FilmCode         string   `json:"film_code"`
	LegalDescription string   `json:"legal_description"`
	DocumentURL      string   `json:"document_url,omitempty"` // empty = no document to OCR
	PageCount        int      `json:"page_count,omitempty"`   // as reported by the search result, 0 = unknown
}

// HasDocument reports whether the record carries a retrievable document.
func (r InputRecord) HasDocument() bool {
	return strings.TrimSpace(r.DocumentURL) != ""
}

// PrimaryOwner returns the first grantee name, the presumed current owner.
func (r InputRecord) PrimaryOwner() string {
	if len(r.GranteeNames) == 0 {
		return ""
	}
	return strings.TrimSpace(r.GranteeNames[0])
}

// Validate checks the structural requirements at the scraper/orchestrator
// boundary. A record without a file number cannot be keyed and fails fast.
func (r InputRecord) Validate() error {
	if strings.TrimSpace(r.FileNumber) == "" {
		return common.NewAppError("RECORD_INVALID", "record is missing a file number", common.ErrInvalidInput)
	}
	return nil
}
