// Package content discovers a course's material tree on the rendered
// portal page and turns every downloadable resource into a task for the
// download orchestrator.
package content

import (
	"path/filepath"

	"coursegrab/pkg/browser"
)

// Course is one course to mirror
type Course struct {
	Code    string
	Name    string
	RootURL string
}

// NodeKind classifies a content node by its on-page capabilities
type NodeKind int

const (
	// KindFolder has an expand affordance or rendered children
	KindFolder NodeKind = iota
	// KindFile has a direct download affordance
	KindFile
	// KindUnrecognized has neither and is skipped with a warning
	KindUnrecognized
)

func (k NodeKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unrecognized"
	}
}

// TaskKind distinguishes real downloads from page snapshots
type TaskKind int

const (
	// TaskDownload triggers the node's download affordance
	TaskDownload TaskKind = iota
	// TaskSnapshot writes captured page HTML for a module that has
	// content but no downloadable package
	TaskSnapshot
)

// Task is one unit of work for the orchestrator: a file node paired
// with its resolved position in the course hierarchy. Created by the
// walker, consumed exactly once, then discarded.
type Task struct {
	Kind TaskKind

	// Label is the sanitized, sibling-unique file name
	Label string
	// Path holds the sanitized parent path segments, relative to the
	// course directory
	Path []string

	// Trigger is the download affordance for TaskDownload
	Trigger browser.Element
	// HTML is the captured page source for TaskSnapshot
	HTML string
}

// RelPath returns the task's destination path relative to the course
// directory
func (t Task) RelPath() string {
	parts := append(append([]string{}, t.Path...), t.Label)
	return filepath.Join(parts...)
}
