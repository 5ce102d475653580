package scraper

import (
	"context"

	"coursegrab/pkg/browser"
	"coursegrab/pkg/content"
	"coursegrab/pkg/download"
)

// Authenticator logs the shared session into the portal
type Authenticator interface {
	Login(ctx context.Context, sess browser.Session, username, password string) error
}

// TreeWalker traverses one course's content tree
type TreeWalker interface {
	Walk(ctx context.Context, course content.Course, visitor content.Visitor) error
}

// TaskRunner executes one discovered task against the destination tree
type TaskRunner interface {
	Run(ctx context.Context, task content.Task, courseDir string) (download.Outcome, error)
}

// Progress receives live run events for terminal display. All methods
// are called from the single scraping goroutine.
type Progress interface {
	CourseStart(code, name string)
	TaskDone(path string, skipped bool)
	TaskFailed(path string, err error)
}
