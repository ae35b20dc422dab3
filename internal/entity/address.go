package entity

import (
	"strings"

	"harrisrecords/constants"
)

// Source identifies which stage of the pipeline produced an address.
type Source string

const (
	SourceDocumentExtraction Source = "document_extraction"
	SourceInteractiveSearch  Source = "interactive_search"
	SourceUnresolved         Source = "unresolved"
)

// ResolvedAddress is the output unit of the resolution pipeline, one per
// input record that reaches a terminal state.
type ResolvedAddress struct {
	FileNumber          string `json:"file_number"`
	Grantor             string `json:"grantor"`
	Grantee             string `json:"grantee"`
	InstrumentTypeLabel string `json:"instrument_type_label"`
	RecordingDate       string `json:"recording_date"`
	FilmCode            string `json:"film_code"`
	LegalDescription    string `json:"legal_description"`
	PropertyAddress     string `json:"property_address"` // empty = unresolved
	Source              Source `json:"source"`
}

// NewResolvedAddress assembles the output row for one input record.
func NewResolvedAddress(rec InputRecord, address string, source Source) ResolvedAddress {
	if strings.TrimSpace(address) == "" {
		source = SourceUnresolved
	}
	return ResolvedAddress{
		FileNumber:          rec.FileNumber,
		Grantor:             strings.Join(rec.GrantorNames, ", "),
		Grantee:             strings.Join(rec.GranteeNames, ", "),
		InstrumentTypeLabel: constants.InstrumentTypeLabel(rec.DocumentTypeCode),
		RecordingDate:       rec.RecordingDate,
		FilmCode:            rec.FilmCode,
		LegalDescription:    rec.LegalDescription,
		PropertyAddress:     strings.TrimSpace(address),
		Source:              source,
	}
}

// Resolved reports whether the record carries a usable address.
func (a ResolvedAddress) Resolved() bool {
	return strings.TrimSpace(a.PropertyAddress) != ""
}
