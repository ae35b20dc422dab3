package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AddressCandidate is one structured address returned by the extraction service.
type AddressCandidate struct {
	FullAddress  string `json:"full_address"`
	StreetNumber string `json:"street_number,omitempty"`
	StreetName   string `json:"street_name,omitempty"`
	Unit         string `json:"unit,omitempty"`
	City         string `json:"city,omitempty"`
	County       string `json:"county,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
	Confidence   string `json:"confidence,omitempty"` // high | medium | low
	GranteeName  string `json:"grantee_name,omitempty"`
}

// Standardize renders the candidate as a single-line address string.
func (c AddressCandidate) Standardize() string {
	var parts []string
	if c.StreetNumber != "" && c.StreetName != "" {
		street := c.StreetNumber + " " + c.StreetName
		if c.Unit != "" {
			street += ", " + c.Unit
		}
		parts = append(parts, street)
	}
	for _, p := range []string{c.City, c.County, c.State, c.ZipCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(c.FullAddress)
	}
	return strings.Join(parts, ", ")
}

// AddressExtractor is the interface the resolution pipeline depends on.
type AddressExtractor interface {
	ExtractAddresses(ctx context.Context, text string) ([]AddressCandidate, error)
}

// RateLimitError flags a transient rate-limit rejection from the remote
// service. Only this class of failure is worth retrying.
type RateLimitError struct {
	StatusCode string
	Cause      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("extraction service rate limited (%s): %v", e.StatusCode, e.Cause)
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

// IsRateLimit reports whether err carries a rate-limit signal.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
