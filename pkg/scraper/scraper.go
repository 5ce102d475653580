package scraper

import (
	"context"
	"fmt"
	"strings"

	"coursegrab/pkg/auth"
	"coursegrab/pkg/browser"
	"coursegrab/pkg/config"
	"coursegrab/pkg/content"
	"coursegrab/pkg/download"
	"coursegrab/pkg/logger"
	"coursegrab/pkg/portal"
	"coursegrab/pkg/ratelimit"
	"coursegrab/pkg/report"
	"coursegrab/pkg/retry"
	"coursegrab/pkg/storage"
)

// Scraper drives the whole run: one login, then every configured
// course in order over the single shared browser session
type Scraper struct {
	cfg    *config.Config
	sess   browser.Session
	auth   Authenticator
	walker TreeWalker
	runner TaskRunner
	pacer  ratelimit.Pacer
	log    logger.Logger

	progress Progress
}

// SetProgress attaches a terminal progress sink
func (s *Scraper) SetProgress(p Progress) {
	s.progress = p
}

// New wires a scraper from config and a launched browser session
func New(cfg *config.Config, sess browser.Session) (*Scraper, error) {
	log := logger.GetLogger()

	store, err := storage.NewManager(cfg.Output.DestinationRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	authenticator := portal.NewAuthenticator(
		cfg.Portal.LoginURL,
		loginSelectors(cfg),
		retry.NewPoller(cfg.Portal.LoginWait, cfg.Browser.PollInterval),
		cfg.Portal.ManualLogin,
		log,
	)

	walker := content.NewWalker(
		sess,
		treeSelectors(cfg),
		retry.NewPoller(cfg.Browser.ExpandTimeout, cfg.Browser.PollInterval),
		cfg.Output.SavePageSnapshots,
		log,
	)

	runner := download.NewOrchestrator(
		store,
		cfg.Browser.StagingDir,
		retry.NewPoller(cfg.Browser.DownloadTimeout, cfg.Browser.PollInterval),
		cfg.Output.ExtractArchives,
		log,
	)

	return &Scraper{
		cfg:    cfg,
		sess:   sess,
		auth:   authenticator,
		walker: walker,
		runner: runner,
		pacer:  ratelimit.NewActionPacer(cfg.Pacing.ActionsPerMinute, cfg.Pacing.Burst),
		log:    log,
	}, nil
}

// Run logs in once and mirrors every course. A login failure aborts the
// whole run; a course whose content root is unreachable is recorded and
// the run moves on. The returned report is always non-nil.
func (s *Scraper) Run(ctx context.Context, account *auth.Account, courses []config.Course) (*report.RunReport, error) {
	rep := report.New()
	defer rep.Finish()

	var username, password string
	if account != nil {
		username, password = account.Username, account.Password
	}

	if err := s.auth.Login(ctx, s.sess, username, password); err != nil {
		s.log.WithError(err).Error("Authentication failed, aborting run")
		return rep, err
	}

	usedDirs := make(map[string]bool)
	for _, course := range courses {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		s.mirrorCourse(ctx, rep, course, courseDir(usedDirs, course))
	}

	downloaded, skipped, failed := rep.Totals()
	s.log.InfoWithFields("Run complete", map[string]interface{}{
		"run_id":     rep.RunID,
		"courses":    len(courses),
		"downloaded": downloaded,
		"skipped":    skipped,
		"failed":     failed,
	})
	return rep, nil
}

// mirrorCourse walks one course and executes its tasks as they are
// discovered
func (s *Scraper) mirrorCourse(ctx context.Context, rep *report.RunReport, course config.Course, courseDir string) {
	cr := rep.StartCourse(course.Code, course.DisplayName())

	s.log.WithField("course", course.Code).Info("Mirroring course")
	if s.progress != nil {
		s.progress.CourseStart(course.Code, course.DisplayName())
	}

	walkCourse := content.Course{
		Code:    course.Code,
		Name:    course.DisplayName(),
		RootURL: course.ContentURL(s.cfg.Portal.BaseURL),
	}

	err := s.walker.Walk(ctx, walkCourse, content.Visitor{
		Task: func(task content.Task) error {
			if err := s.pacer.Pace(ctx); err != nil {
				return err
			}

			outcome, err := s.runner.Run(ctx, task, courseDir)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				s.log.WithError(err).WithField("path", task.RelPath()).Error("Task failed")
				rep.RecordFailure(cr, task.RelPath(), err)
				if s.progress != nil {
					s.progress.TaskFailed(task.RelPath(), err)
				}
				return nil
			}

			switch outcome {
			case download.OutcomeSkipped:
				rep.RecordSkipped(cr)
			default:
				rep.RecordDownloaded(cr)
			}
			if s.progress != nil {
				s.progress.TaskDone(task.RelPath(), outcome == download.OutcomeSkipped)
			}
			return nil
		},
		Warning: func(path []string, label, reason string) {
			rep.RecordWarning(cr, joinPath(path, label), reason)
		},
		SubtreeFailed: func(path []string, label string, err error) {
			rep.RecordFailure(cr, joinPath(path, label), err)
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("course", course.Code).Error("Course root unreachable")
		rep.RecordRootFailure(cr, err)
	}
}

// courseDir resolves the destination directory for a course. Courses
// sharing a display name get the course code appended so their trees
// never merge.
func courseDir(used map[string]bool, course config.Course) string {
	dir := content.SanitizeLabel(course.DisplayName())
	if used[dir] {
		dir = content.SanitizeLabel(course.DisplayName() + " " + course.Code)
	}
	used[dir] = true
	return dir
}

func joinPath(path []string, label string) string {
	return strings.Join(append(append([]string{}, path...), label), "/")
}

// loginSelectors applies configured selector overrides on top of the
// built-in login form defaults
func loginSelectors(cfg *config.Config) portal.LoginSelectors {
	sel := portal.DefaultLoginSelectors()
	o := cfg.Selectors.Login
	override(&sel.Username, o.Username)
	override(&sel.Password, o.Password)
	override(&sel.Submit, o.Submit)
	override(&sel.Marker, o.Marker)
	override(&sel.ErrorBanner, o.ErrorBanner)
	return sel
}

// treeSelectors applies configured selector overrides on top of the
// built-in content tree defaults
func treeSelectors(cfg *config.Config) content.TreeSelectors {
	sel := content.DefaultTreeSelectors()
	o := cfg.Selectors.Tree
	override(&sel.ContentFrame, o.ContentFrame)
	override(&sel.Children, o.Children)
	override(&sel.Label, o.Label)
	override(&sel.ExpandToggle, o.ExpandToggle)
	override(&sel.DownloadLink, o.DownloadLink)
	return sel
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
