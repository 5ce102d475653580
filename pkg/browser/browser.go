// Package browser abstracts the automation driver behind the handful of
// primitives the rest of the program needs: navigate, locate, click,
// read. Traversal and download logic depend only on these interfaces,
// never on a concrete driver.
package browser

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a selector matches no element
var ErrNotFound = errors.New("browser: element not found")

// Session is an exclusively-owned handle on one browser tab. Exactly
// one component drives it at a time; it is passed explicitly, never
// held as ambient state.
type Session interface {
	// Navigate loads the given URL and waits for the document body
	Navigate(ctx context.Context, url string) error

	// Location returns the current page URL
	Location(ctx context.Context) (string, error)

	// Find returns the first element matching the CSS selector,
	// or ErrNotFound
	Find(ctx context.Context, selector string) (Element, error)

	// FindAll returns every element matching the CSS selector,
	// possibly none
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// Click clicks the first element matching the selector
	Click(ctx context.Context, selector string) error

	// SendKeys types the value into the first element matching the
	// selector
	SendKeys(ctx context.Context, selector, value string) error

	// PageSource returns the rendered HTML of the current document
	PageSource(ctx context.Context) (string, error)

	// EnterFrame scopes subsequent queries to the first iframe
	// matching the selector; ExitFrame restores the top document
	EnterFrame(ctx context.Context, selector string) error
	ExitFrame()

	// Close tears the session down
	Close() error
}

// Element is a located on-page element. Handle is a stable identity for
// the element within the current document, used for cycle detection
// during traversal.
type Element interface {
	Handle() string
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
}
