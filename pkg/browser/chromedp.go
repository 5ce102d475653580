package browser

import (
	"context"
	"fmt"
	"os"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"coursegrab/pkg/config"
)

// chromeSession implements Session on a chromedp-driven Chrome tab
type chromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	// frame, when set, scopes queries to a content iframe
	frame *cdp.Node
}

// Launch starts a Chrome instance configured to download files into the
// staging directory without prompting, and returns a session on its tab
func Launch(ctx context.Context, cfg *config.BrowserConfig) (Session, error) {
	if err := os.MkdirAll(cfg.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.BinaryPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BinaryPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, cancel := chromedp.NewContext(allocCtx)

	// Route every download into the staging dir, no save dialogs
	err := chromedp.Run(taskCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(cfg.StagingDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &chromeSession{
		ctx:         taskCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

// run executes chromedp actions on the session tab, honoring any
// deadline carried by the caller's context
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	s.frame = nil
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// queryOpts builds the option list for a selector query, scoping it to
// the active iframe when one is set
func (s *chromeSession) queryOpts(all bool) []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	if all {
		opts = append(opts, chromedp.ByQueryAll)
	} else {
		opts = append(opts, chromedp.ByQuery)
	}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return opts
}

func (s *chromeSession) Find(ctx context.Context, selector string) (Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, s.queryOpts(false)...)); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return &chromeElement{session: s, node: nodes[0]}, nil
}

func (s *chromeSession) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, s.queryOpts(true)...)); err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{session: s, node: n})
	}
	return elements, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	opts := []chromedp.QueryOption{chromedp.ByQuery, chromedp.NodeVisible}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return s.run(ctx, chromedp.Click(selector, opts...))
}

func (s *chromeSession) SendKeys(ctx context.Context, selector, value string) error {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return s.run(ctx, chromedp.SendKeys(selector, value, opts...))
}

func (s *chromeSession) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) EnterFrame(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return ErrNotFound
	}
	s.frame = nodes[0]
	return nil
}

func (s *chromeSession) ExitFrame() {
	s.frame = nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}

// chromeElement implements Element on a DOM node
type chromeElement struct {
	session *chromeSession
	node    *cdp.Node
}

// Handle returns the element's full xpath, which is stable for as long
// as the document shape around it does not change
func (e *chromeElement) Handle() string {
	return e.node.FullXPath()
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.session.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.run(ctx, chromedp.Text([]cdp.NodeID{e.node.NodeID}, &text, chromedp.ByNodeID))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var value string
	var ok bool
	err := e.session.run(ctx, chromedp.AttributeValue([]cdp.NodeID{e.node.NodeID}, name, &value, &ok, chromedp.ByNodeID))
	if err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (e *chromeElement) Find(ctx context.Context, selector string) (Element, error) {
	var nodes []*cdp.Node
	err := e.session.run(ctx, chromedp.Nodes(selector, &nodes,
		chromedp.ByQuery, chromedp.AtLeast(0), chromedp.FromNode(e.node)))
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return &chromeElement{session: e.session, node: nodes[0]}, nil
}

func (e *chromeElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := e.session.run(ctx, chromedp.Nodes(selector, &nodes,
		chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(e.node)))
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{session: e.session, node: n})
	}
	return elements, nil
}
