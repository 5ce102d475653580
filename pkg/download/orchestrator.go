// Package download turns discovered content tasks into files on disk:
// trigger the browser download, wait for the staging area to settle,
// move the result into the mirrored destination tree.
package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"coursegrab/pkg/content"
	errs "coursegrab/pkg/errors"
	"coursegrab/pkg/logger"
	"coursegrab/pkg/retry"
	"coursegrab/pkg/storage"
)

// Outcome is the result of one task
type Outcome int

const (
	// OutcomeDownloaded means a new file was written
	OutcomeDownloaded Outcome = iota
	// OutcomeSkipped means the destination already held the file
	OutcomeSkipped
)

func (o Outcome) String() string {
	if o == OutcomeSkipped {
		return "skipped"
	}
	return "downloaded"
}

// inProgressExts are browser work-in-progress download suffixes
var inProgressExts = []string{".crdownload", ".part", ".tmp", ".download"}

// Orchestrator executes tasks one at a time against the shared browser
// session's staging directory. Strict sequencing is what makes matching
// a completed file to its task by recency unambiguous.
type Orchestrator struct {
	store      *storage.Manager
	stagingDir string
	poller     *retry.Poller
	extract    bool
	log        logger.Logger
}

// NewOrchestrator creates an orchestrator. poller bounds the wait for a
// triggered download to materialize in stagingDir. extract unpacks zip
// packages after placement.
func NewOrchestrator(store *storage.Manager, stagingDir string, poller *retry.Poller, extract bool, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Orchestrator{
		store:      store,
		stagingDir: stagingDir,
		poller:     poller,
		extract:    extract,
		log:        log,
	}
}

// Run executes one task. The destination is checked before the browser
// is touched, so re-runs over an existing tree are cheap.
func (o *Orchestrator) Run(ctx context.Context, task content.Task, courseDir string) (Outcome, error) {
	rel := filepath.Join(courseDir, task.RelPath())

	// Placed also recognizes a borrowed extension and the directory
	// left by an extracted package, so re-runs skip before the
	// browser is touched
	if o.store.Placed(rel) {
		o.log.WithField("path", rel).Debug("Already present, skipping")
		return OutcomeSkipped, nil
	}

	if task.Kind == content.TaskSnapshot {
		if err := o.store.WriteSnapshot(rel, task.HTML); err != nil {
			return 0, err
		}
		o.log.WithField("path", rel).Info("Saved page snapshot")
		return OutcomeDownloaded, nil
	}

	return o.runDownload(ctx, task, rel)
}

// runDownload triggers the resource's download affordance and shepherds
// the resulting file into place
func (o *Orchestrator) runDownload(ctx context.Context, task content.Task, rel string) (Outcome, error) {
	before, err := o.listStaging()
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to read staging directory", err)
	}

	if err := task.Trigger.Click(ctx); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeDownloadTimeout, "failed to trigger download", err)
	}
	o.log.WithField("path", rel).Debug("Download triggered, waiting for file")

	staged, err := o.waitForDownload(ctx, before)
	if err != nil {
		return 0, err
	}

	// The browser controls the staged name; the label controls the
	// destination name. Borrow the staged extension when the label
	// has none.
	if filepath.Ext(rel) == "" {
		rel += filepath.Ext(staged)
	}

	if err := o.store.Place(staged, rel); err != nil {
		return 0, err
	}
	o.log.WithField("path", rel).Info("Downloaded")

	if o.extract && strings.EqualFold(filepath.Ext(rel), ".zip") {
		if err := o.store.ExtractArchive(rel); err != nil {
			return 0, err
		}
		o.log.WithField("path", rel).Debug("Extracted content package")
	}

	return OutcomeDownloaded, nil
}

// waitForDownload polls the staging directory for exactly one new
// completed file. A file counts as completed once it has no
// work-in-progress suffix and its size is stable across two polls.
func (o *Orchestrator) waitForDownload(ctx context.Context, before map[string]bool) (string, error) {
	lastSizes := make(map[string]int64)
	var matched string

	err := o.poller.Until(ctx, errs.ErrorTypeDownloadTimeout, "download to complete", func() (bool, error) {
		candidates, err := o.newCompletedFiles(before, lastSizes)
		if err != nil {
			return false, errs.Wrap(errs.ErrorTypeFilesystem, "failed to read staging directory", err)
		}
		switch len(candidates) {
		case 0:
			return false, nil
		case 1:
			matched = candidates[0]
			return true, nil
		default:
			return false, errs.Newf(errs.ErrorTypeDownloadAmbiguous,
				"%d new files appeared in the staging area for one download", len(candidates))
		}
	})
	if err != nil {
		return "", err
	}
	return matched, nil
}

// newCompletedFiles lists staged files not present before the trigger,
// with settled sizes and no in-progress suffix
func (o *Orchestrator) newCompletedFiles(before map[string]bool, lastSizes map[string]int64) ([]string, error) {
	entries, err := os.ReadDir(o.stagingDir)
	if err != nil {
		return nil, err
	}

	var completed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || before[name] || inProgress(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if prev, seen := lastSizes[name]; seen && prev == info.Size() {
			completed = append(completed, filepath.Join(o.stagingDir, name))
		}
		lastSizes[name] = info.Size()
	}
	return completed, nil
}

// listStaging snapshots the staging directory contents by name
func (o *Orchestrator) listStaging() (map[string]bool, error) {
	entries, err := os.ReadDir(o.stagingDir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	return names, nil
}

func inProgress(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, wip := range inProgressExts {
		if ext == wip {
			return true
		}
	}
	return false
}
