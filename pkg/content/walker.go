package content

import (
	"context"
	"errors"

	"coursegrab/pkg/browser"
	errs "coursegrab/pkg/errors"
	"coursegrab/pkg/logger"
	"coursegrab/pkg/retry"
)

// TreeSelectors locate the pieces of the portal's content tree. The
// child selectors are :scope-rooted so a query under a folder element
// only sees its direct children, not the whole subtree.
type TreeSelectors struct {
	// ContentFrame is the iframe wrapping the course content
	ContentFrame string
	// Children matches a container's direct child entries
	Children string
	// Label matches the entry's title element within a child
	Label string
	// ExpandToggle matches a collapsed container's expand affordance
	ExpandToggle string
	// DownloadLink matches a resource's download affordance
	DownloadLink string
}

// DefaultTreeSelectors returns selectors for the target portal's
// content page
func DefaultTreeSelectors() TreeSelectors {
	return TreeSelectors{
		ContentFrame: "iframe",
		Children:     ":scope > .unit, :scope > .d2l-le-unit, :scope ul.children > li",
		Label:        ":scope .unit-title",
		ExpandToggle: ":scope > button[aria-expanded]",
		DownloadLink: ":scope .download-content-button",
	}
}

// Visitor receives the walker's findings. Task must consume each task
// before the walker moves on; returning an error aborts the walk.
type Visitor struct {
	Task func(task Task) error
	// Warning is called for unrecognized node types
	Warning func(path []string, label string, reason string)
	// SubtreeFailed is called when a folder's children never render;
	// siblings continue
	SubtreeFailed func(path []string, label string, err error)
}

// Walker discovers a course's content tree. One walker instance owns
// the traversal state for exactly one course and is not reused.
type Walker struct {
	sess      browser.Session
	selectors TreeSelectors
	expand    *retry.Poller
	snapshots bool
	log       logger.Logger

	visited map[string]bool
}

// NewWalker creates a walker for one course traversal. expand bounds
// the wait for a collapsed subtree to render. snapshots enables HTML
// snapshot tasks for modules without a downloadable package.
func NewWalker(sess browser.Session, selectors TreeSelectors, expand *retry.Poller, snapshots bool, log logger.Logger) *Walker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Walker{
		sess:      sess,
		selectors: selectors,
		expand:    expand,
		snapshots: snapshots,
		log:       log,
		visited:   make(map[string]bool),
	}
}

// Walk navigates to the course root and traverses its content tree,
// handing every discovered resource to the visitor. The returned error
// is course-level (unreachable root or an aborted visit); per-subtree
// problems go through the visitor instead.
func (w *Walker) Walk(ctx context.Context, course Course, visitor Visitor) error {
	w.log.WithFields(map[string]interface{}{
		"course": course.Code,
		"url":    course.RootURL,
	}).Info("Opening course content")

	// Portals drop the occasional navigation; one paced retry before
	// the course is written off as unreachable
	err := retry.Do(func() error {
		if err := w.sess.Navigate(ctx, course.RootURL); err != nil {
			return errs.Wrap(errs.ErrorTypeNavigation, "course root unreachable", err)
		}
		return nil
	}, &retry.Config{
		MaxAttempts: 2,
		Backoff:     &retry.ConstantBackoff{Delay: w.expand.Interval},
		RetryIf: func(err error) bool {
			return errs.IsType(err, errs.ErrorTypeNavigation)
		},
		Context: ctx,
		Logger:  w.log,
	})
	if err != nil {
		return err
	}

	// Content is rendered inside an iframe on this portal; fall back
	// to the top document when there is none
	if err := w.sess.EnterFrame(ctx, w.selectors.ContentFrame); err != nil {
		if !errors.Is(err, browser.ErrNotFound) {
			return errs.Wrap(errs.ErrorTypeNavigation, "course content frame did not load", err)
		}
	}
	defer w.sess.ExitFrame()

	children, err := w.sess.FindAll(ctx, w.selectors.Children)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, "failed to enumerate course content", err)
	}

	// The course root is an implicit folder with an empty label
	return w.walkChildren(ctx, children, nil, visitor)
}

// walkChildren classifies and processes one folder's direct children in
// render order
func (w *Walker) walkChildren(ctx context.Context, children []browser.Element, path []string, visitor Visitor) error {
	// Sibling labels share one namespace per folder
	used := make(map[string]int)

	for _, child := range children {
		handle := child.Handle()
		if w.visited[handle] {
			w.log.WithField("handle", handle).Warn("Cycle detected in content tree, skipping node")
			if visitor.Warning != nil {
				visitor.Warning(path, "", "node already visited")
			}
			continue
		}
		w.visited[handle] = true

		label := SanitizeLabel(w.nodeLabel(ctx, child))

		switch w.classify(ctx, child) {
		case KindFile:
			if err := w.visitFile(ctx, child, path, UniqueLabel(used, label), visitor); err != nil {
				return err
			}

		case KindFolder:
			if err := w.visitFolder(ctx, child, path, UniqueLabel(used, label), visitor); err != nil {
				return err
			}

		default:
			w.log.WithFields(map[string]interface{}{
				"label": label,
				"path":  pathString(path),
			}).Warn("Unrecognized content node, skipping")
			if visitor.Warning != nil {
				visitor.Warning(path, label, "no expand or download affordance")
			}
		}
	}

	return nil
}

// visitFile yields a download task for a resource node
func (w *Walker) visitFile(ctx context.Context, node browser.Element, path []string, label string, visitor Visitor) error {
	trigger, err := node.Find(ctx, w.selectors.DownloadLink)
	if err != nil {
		// Classification saw the affordance a moment ago; the page
		// shifted underneath us
		if visitor.Warning != nil {
			visitor.Warning(path, label, "download affordance disappeared")
		}
		return nil
	}

	task := Task{
		Kind:    TaskDownload,
		Label:   label,
		Path:    append([]string{}, path...),
		Trigger: trigger,
	}

	w.log.WithFields(map[string]interface{}{
		"file": label,
		"path": pathString(path),
	}).Debug("Discovered resource")

	return visitor.Task(task)
}

// visitFolder expands a container node if needed and recurses into it
func (w *Walker) visitFolder(ctx context.Context, node browser.Element, path []string, label string, visitor Visitor) error {
	if err := w.ensureExpanded(ctx, node); err != nil {
		w.log.WithError(err).WithFields(map[string]interface{}{
			"folder": label,
			"path":   pathString(path),
		}).Warn("Subtree failed to render, continuing with siblings")
		if visitor.SubtreeFailed != nil {
			visitor.SubtreeFailed(path, label, err)
		}
		return nil
	}

	children, err := node.FindAll(ctx, w.selectors.Children)
	if err != nil {
		if visitor.SubtreeFailed != nil {
			visitor.SubtreeFailed(path, label, err)
		}
		return nil
	}

	childPath := append(append([]string{}, path...), label)

	if len(children) == 0 {
		return w.visitEmptyFolder(ctx, node, path, label, visitor)
	}

	return w.walkChildren(ctx, children, childPath, visitor)
}

// visitEmptyFolder handles a module with no child entries. If it still
// renders content and snapshots are enabled, the page HTML is captured
// so the material is not silently lost.
func (w *Walker) visitEmptyFolder(ctx context.Context, node browser.Element, path []string, label string, visitor Visitor) error {
	if !w.snapshots {
		return nil
	}

	html, err := w.sess.PageSource(ctx)
	if err != nil || html == "" {
		return nil
	}

	task := Task{
		Kind:  TaskSnapshot,
		Label: label + ".html",
		Path:  append([]string{}, path...),
		HTML:  html,
	}

	w.log.WithFields(map[string]interface{}{
		"module": label,
		"path":   pathString(path),
	}).Debug("Module has no package, capturing page snapshot")

	return visitor.Task(task)
}

// ensureExpanded triggers a collapsed node's expand affordance and
// waits (bounded) for its subtree to render
func (w *Walker) ensureExpanded(ctx context.Context, node browser.Element) error {
	toggle, err := node.Find(ctx, w.selectors.ExpandToggle)
	if err != nil {
		// No toggle: the container renders its children eagerly
		return nil
	}

	expanded, ok, err := toggle.Attribute(ctx, "aria-expanded")
	if err != nil {
		return err
	}
	if ok && expanded == "true" {
		return nil
	}

	if err := toggle.Click(ctx); err != nil {
		return err
	}

	return w.expand.Until(ctx, errs.ErrorTypeStructure, "subtree to render", func() (bool, error) {
		children, err := node.FindAll(ctx, w.selectors.Children)
		if err != nil {
			return false, err
		}
		if len(children) > 0 {
			return true, nil
		}
		// An expanded-but-empty container is also a settled state
		state, ok, err := toggle.Attribute(ctx, "aria-expanded")
		if err != nil {
			return false, err
		}
		return ok && state == "true", nil
	})
}

// classify probes a node's capabilities: a download affordance makes it
// a file, an expand affordance or rendered children make it a folder
func (w *Walker) classify(ctx context.Context, node browser.Element) NodeKind {
	if _, err := node.Find(ctx, w.selectors.DownloadLink); err == nil {
		return KindFile
	}
	if _, err := node.Find(ctx, w.selectors.ExpandToggle); err == nil {
		return KindFolder
	}
	if children, err := node.FindAll(ctx, w.selectors.Children); err == nil && len(children) > 0 {
		return KindFolder
	}
	return KindUnrecognized
}

// nodeLabel reads the node's title element, falling back to its first
// text line
func (w *Walker) nodeLabel(ctx context.Context, node browser.Element) string {
	if el, err := node.Find(ctx, w.selectors.Label); err == nil {
		if text, err := el.Text(ctx); err == nil && text != "" {
			return text
		}
	}
	text, err := node.Text(ctx)
	if err != nil {
		return ""
	}
	for _, line := range splitLines(text) {
		if line != "" {
			return line
		}
	}
	return ""
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

func pathString(path []string) string {
	out := ""
	for i, seg := range path {
		if i > 0 {
			out += "/"
		}
		out += seg
	}
	return out
}
