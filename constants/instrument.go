package constants

// Instrument type codes as they appear in the county clerk search results,
// mapped to human-readable labels for the output rows.
var instrumentTypeLabels = map[string]string{
	"D":      "Deed",
	"W/D":    "Warranty Deed",
	"QCD":    "Quitclaim Deed",
	"D/T":    "Deed of Trust",
	"M":      "Mortgage",
	"LIEN":   "Lien",
	"M/L":    "Mechanic's Lien",
	"A/L":    "Abstract of Lien",
	"REL":    "Release",
	"ASSIGN": "Assignment",
	"AFF":    "Affidavit",
	"POA":    "Power of Attorney",
	"LP":     "Lis Pendens",
	"ESMT":   "Easement",
}

// InstrumentTypeLabel returns the readable label for a document type code.
// Unknown codes are returned unchanged so nothing is lost in the output.
func InstrumentTypeLabel(code string) string {
	if code == "" {
		return ""
	}
	if label, ok := instrumentTypeLabels[code]; ok {
		return label
	}
	return code
}
