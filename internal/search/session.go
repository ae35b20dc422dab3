package search

import "context"

// Session is one browser tab. The driver only needs a handful of wait,
// fill, and read primitives; keeping them behind an interface lets the state
// machine be exercised with fakes while the chromedp adapter supplies the
// real thing.
type Session interface {
	// Navigate loads the URL and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector matches a visible node or the
	// context deadline expires.
	WaitVisible(ctx context.Context, selector string) error
	// Fill replaces the value of the matched input.
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// PressEnter submits via the keyboard on the matched input.
	PressEnter(ctx context.Context, selector string) error
	// Content returns the full rendered page HTML.
	Content(ctx context.Context) (string, error)
	// Text returns the inner text of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// Texts returns the inner text of every match.
	Texts(ctx context.Context, selector string) ([]string, error)
	Count(ctx context.Context, selector string) (int, error)
	Close() error
}

// SessionPool opens tabs for the driver's workers.
type SessionPool interface {
	NewSession(ctx context.Context) (Session, error)
}
