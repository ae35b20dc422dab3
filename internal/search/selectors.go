package search

// The property-search site's markup is not guaranteed stable, so every
// selector is an ordered ladder of candidates tried in sequence; the first
// match wins.

var searchInputSelectors = []string{
	"input.searchTerm",
	"input.autocomplete",
	"input[placeholder*='Search by']",
	"input[type='search']",
}

var searchButtonSelectors = []string{
	"div.input-group-append button.btn.btn-primary",
	"button[type='button'].btn.btn-primary",
	".input-group-append button",
}

var resultsTableSelectors = []string{
	"table.data-table.dataTable tbody tr.resulttr",
	"table.data-table tbody tr",
	"table.dataTable tbody tr",
	".data-table tbody tr",
	"table[id*='DataTable'] tbody tr",
	"tbody tr.resulttr",
}

var resetSelectors = []string{
	"button.new-search",
	"a.new-search",
	"input[value*='Reset']",
	"button.reset",
}

// Literal page-content markers checked in priority order before the table
// ladder is consulted.
var noResultsMarkers = []string{
	"No Results Found",
	"No results found",
	"Showing 0 to 0 of 0 entries",
	"No matching records found",
	"0 entries",
}

// Token whitelist used when structured extraction of the address cell fails
// and the first result row is scanned cell by cell.
var addressPatterns = []string{
	"ST", "AVE", "RD", "DR", "LN", "BLVD", "TX", "KATY", "HOUSTON",
}
