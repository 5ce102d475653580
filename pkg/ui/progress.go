package ui

import (
	"fmt"
	"time"
)

// RunProgress prints live per-task status lines during a run. It
// implements the scraper's progress sink.
type RunProgress struct {
	startTime  time.Time
	downloaded int
	skipped    int
	failed     int
}

// NewRunProgress creates a progress printer
func NewRunProgress() *RunProgress {
	return &RunProgress{startTime: time.Now()}
}

// CourseStart announces the course being mirrored
func (p *RunProgress) CourseStart(code, name string) {
	if quiet {
		return
	}
	fmt.Printf("\n%s %s\n", Magenta("[COURSE]"), Cyan(fmt.Sprintf("%s %s", code, name)))
}

// TaskDone records a completed task
func (p *RunProgress) TaskDone(path string, skipped bool) {
	if skipped {
		p.skipped++
		if !quiet {
			fmt.Printf("  %s %s\n", Dim("skip"), Dim(path))
		}
		return
	}
	p.downloaded++
	if !quiet {
		fmt.Printf("  %s %s\n", Green("save"), path)
	}
}

// TaskFailed records a failed task. Failures print even in quiet mode.
func (p *RunProgress) TaskFailed(path string, err error) {
	p.failed++
	fmt.Printf("  %s %s: %v\n", Red("fail"), path, err)
}

// Elapsed returns the time since the run started
func (p *RunProgress) Elapsed() time.Duration {
	return time.Since(p.startTime)
}

// Counts returns the running totals
func (p *RunProgress) Counts() (downloaded, skipped, failed int) {
	return p.downloaded, p.skipped, p.failed
}
