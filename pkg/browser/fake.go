package browser

import (
	"context"
	"fmt"
	"sync/atomic"
)

// FakeElement is a scriptable element for tests. Children are keyed by
// the selector a caller would use to find them, and OnClick lets a test
// simulate page reactions (subtree rendering, download starting).
type FakeElement struct {
	ID      string
	Label   string
	Attrs   map[string]string
	Sub     map[string][]*FakeElement
	OnClick func()

	ClickCount int
}

var fakeHandleSeq atomic.Int64

// NewFakeElement creates an element with a unique handle
func NewFakeElement(label string) *FakeElement {
	return &FakeElement{
		ID:    fmt.Sprintf("fake-%d", fakeHandleSeq.Add(1)),
		Label: label,
		Attrs: make(map[string]string),
		Sub:   make(map[string][]*FakeElement),
	}
}

// AddChild registers a child element under the given selector
func (e *FakeElement) AddChild(selector string, child *FakeElement) *FakeElement {
	e.Sub[selector] = append(e.Sub[selector], child)
	return e
}

func (e *FakeElement) Handle() string { return e.ID }

func (e *FakeElement) Click(_ context.Context) error {
	e.ClickCount++
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *FakeElement) Text(_ context.Context) (string, error) {
	return e.Label, nil
}

func (e *FakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *FakeElement) Find(_ context.Context, selector string) (Element, error) {
	matches := e.Sub[selector]
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

func (e *FakeElement) FindAll(_ context.Context, selector string) ([]Element, error) {
	matches := e.Sub[selector]
	elements := make([]Element, 0, len(matches))
	for _, m := range matches {
		elements = append(elements, m)
	}
	return elements, nil
}

// FakePage is one scripted page keyed by URL
type FakePage struct {
	Root   *FakeElement
	Source string
}

// FakeSession is a scriptable Session for tests
type FakeSession struct {
	Pages        map[string]*FakePage
	NavigateErrs map[string]error

	CurrentURL string
	NavLog     []string
	TypedKeys  map[string]string

	closed bool
}

// NewFakeSession creates an empty fake session
func NewFakeSession() *FakeSession {
	return &FakeSession{
		Pages:        make(map[string]*FakePage),
		NavigateErrs: make(map[string]error),
		TypedKeys:    make(map[string]string),
	}
}

// AddPage scripts a page at the given URL
func (s *FakeSession) AddPage(url string, root *FakeElement) *FakePage {
	page := &FakePage{Root: root}
	s.Pages[url] = page
	return page
}

func (s *FakeSession) page() *FakePage {
	return s.Pages[s.CurrentURL]
}

func (s *FakeSession) Navigate(_ context.Context, url string) error {
	s.NavLog = append(s.NavLog, url)
	if err := s.NavigateErrs[url]; err != nil {
		return err
	}
	if _, ok := s.Pages[url]; !ok {
		return fmt.Errorf("fake session: no page scripted at %s", url)
	}
	s.CurrentURL = url
	return nil
}

func (s *FakeSession) Location(_ context.Context) (string, error) {
	return s.CurrentURL, nil
}

func (s *FakeSession) Find(ctx context.Context, selector string) (Element, error) {
	page := s.page()
	if page == nil {
		return nil, ErrNotFound
	}
	return page.Root.Find(ctx, selector)
}

func (s *FakeSession) FindAll(ctx context.Context, selector string) ([]Element, error) {
	page := s.page()
	if page == nil {
		return nil, nil
	}
	return page.Root.FindAll(ctx, selector)
}

func (s *FakeSession) Click(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

func (s *FakeSession) SendKeys(ctx context.Context, selector, value string) error {
	if _, err := s.Find(ctx, selector); err != nil {
		return err
	}
	s.TypedKeys[selector] = value
	return nil
}

func (s *FakeSession) PageSource(_ context.Context) (string, error) {
	page := s.page()
	if page == nil {
		return "", fmt.Errorf("fake session: no current page")
	}
	return page.Source, nil
}

func (s *FakeSession) EnterFrame(ctx context.Context, selector string) error {
	// Frames are flattened in the fake: the scripted root stands in
	// for the frame document
	if _, err := s.Find(ctx, selector); err != nil {
		return err
	}
	return nil
}

func (s *FakeSession) ExitFrame() {}

func (s *FakeSession) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *FakeSession) Closed() bool { return s.closed }
