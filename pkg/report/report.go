// Package report accumulates per-course outcomes for the final run
// summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Failure is one recorded problem, scoped to a course and a path
// within it
type Failure struct {
	Course string
	Path   string
	Reason string
}

// CourseReport holds the outcome counters for one course
type CourseReport struct {
	Code       string
	Name       string
	Downloaded int
	Skipped    int
	Failed     int
	// RootFailed marks a course whose content root never loaded
	RootFailed bool
}

// RunReport is the externally observable result of a whole run. It is
// owned by the course iterator and emitted once at the end; it is not
// persisted.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Courses  []*CourseReport
	Failures []Failure
	Warnings []Failure
}

// New creates an empty run report stamped with a fresh run ID
func New() *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// StartCourse registers a course and returns its report entry
func (r *RunReport) StartCourse(code, name string) *CourseReport {
	cr := &CourseReport{Code: code, Name: name}
	r.Courses = append(r.Courses, cr)
	return cr
}

// RecordDownloaded counts a completed download
func (r *RunReport) RecordDownloaded(cr *CourseReport) {
	cr.Downloaded++
}

// RecordSkipped counts a file that was already present
func (r *RunReport) RecordSkipped(cr *CourseReport) {
	cr.Skipped++
}

// RecordFailure counts a failed task and keeps its reason
func (r *RunReport) RecordFailure(cr *CourseReport, path string, err error) {
	cr.Failed++
	r.Failures = append(r.Failures, Failure{
		Course: cr.Code,
		Path:   path,
		Reason: err.Error(),
	})
}

// RecordRootFailure marks a course whose root page was unreachable
func (r *RunReport) RecordRootFailure(cr *CourseReport, err error) {
	cr.RootFailed = true
	cr.Failed++
	r.Failures = append(r.Failures, Failure{
		Course: cr.Code,
		Path:   "/",
		Reason: err.Error(),
	})
}

// RecordWarning keeps a non-fatal structure warning
func (r *RunReport) RecordWarning(cr *CourseReport, path, reason string) {
	r.Warnings = append(r.Warnings, Failure{
		Course: cr.Code,
		Path:   path,
		Reason: reason,
	})
}

// Finish stamps the end of the run
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Totals sums the per-course counters
func (r *RunReport) Totals() (downloaded, skipped, failed int) {
	for _, cr := range r.Courses {
		downloaded += cr.Downloaded
		skipped += cr.Skipped
		failed += cr.Failed
	}
	return
}

// Summary renders the human-readable end-of-run report
func (r *RunReport) Summary() string {
	var b strings.Builder

	downloaded, skipped, failed := r.Totals()
	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	fmt.Fprintf(&b, "%d downloaded, %d skipped (already present), %d failed across %d courses\n",
		downloaded, skipped, failed, len(r.Courses))

	for _, cr := range r.Courses {
		status := ""
		if cr.RootFailed {
			status = "  [course root unreachable]"
		}
		fmt.Fprintf(&b, "  %-12s %-30s %3d downloaded %3d skipped %3d failed%s\n",
			cr.Code, cr.Name, cr.Downloaded, cr.Skipped, cr.Failed, status)
	}

	if len(r.Failures) > 0 {
		b.WriteString("Failures:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  %s %s: %s\n", f.Course, f.Path, f.Reason)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "%d structure warnings (unrecognized nodes)\n", len(r.Warnings))
	}

	return b.String()
}
