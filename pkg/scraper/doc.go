// Package scraper coordinates a full mirroring run: authenticate the
// shared browser session once, then walk each configured course's
// content tree and hand every discovered resource to the download
// orchestrator. All browser work is strictly sequential; the pacer
// spaces portal interactions out so a bulk run stays polite.
//
// The scraper owns the run report. Per-course outcomes, task failures
// and structure warnings are accumulated there and summarized once at
// the end of the run.
package scraper
