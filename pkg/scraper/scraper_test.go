package scraper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coursegrab/pkg/auth"
	"coursegrab/pkg/browser"
	"coursegrab/pkg/config"
	"coursegrab/pkg/content"
	"coursegrab/pkg/download"
	errs "coursegrab/pkg/errors"
	"coursegrab/pkg/logger"
	"coursegrab/pkg/portal"
	"coursegrab/pkg/ratelimit"
	"coursegrab/pkg/retry"
	"coursegrab/pkg/storage"
)

const testLoginURL = "https://portal.example.edu/login"

var testSelectors = content.TreeSelectors{
	ContentFrame: "iframe",
	Children:     "li",
	Label:        ".title",
	ExpandToggle: ".toggle",
	DownloadLink: ".dl",
}

var testAccount = &auth.Account{Username: "student01", Password: "hunter2"}

// scriptLogin adds a login page whose submit renders the authenticated
// marker unless reject is set
func scriptLogin(sess *browser.FakeSession, reject bool) {
	sel := portal.DefaultLoginSelectors()

	root := browser.NewFakeElement("login")
	root.AddChild(sel.Username, browser.NewFakeElement("username"))
	root.AddChild(sel.Password, browser.NewFakeElement("password"))
	submit := browser.NewFakeElement("submit")
	submit.OnClick = func() {
		if reject {
			root.AddChild(sel.ErrorBanner, browser.NewFakeElement("bad password"))
		} else {
			root.AddChild(sel.Marker, browser.NewFakeElement("nav"))
		}
	}
	root.AddChild(sel.Submit, submit)
	sess.AddPage(testLoginURL, root)
}

// scriptCourse adds a course page with one downloadable file whose
// trigger drops fileName into the staging directory
func scriptCourse(t *testing.T, sess *browser.FakeSession, url, label, fileName, staging string) {
	t.Helper()

	node := browser.NewFakeElement(label)
	node.AddChild(".title", browser.NewFakeElement(label))
	dl := browser.NewFakeElement("download " + label)
	dl.OnClick = func() {
		if err := os.WriteFile(filepath.Join(staging, fileName), []byte("data "+label), 0644); err != nil {
			t.Error(err)
		}
	}
	node.AddChild(".dl", dl)

	root := browser.NewFakeElement("root")
	root.AddChild("li", node)
	sess.AddPage(url, root)
}

type scraperFixture struct {
	scraper *Scraper
	sess    *browser.FakeSession
	root    string
	staging string
}

func newScraperFixture(t *testing.T) *scraperFixture {
	t.Helper()

	sess := browser.NewFakeSession()
	root := t.TempDir()
	staging := t.TempDir()

	store, err := storage.NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Portal.BaseURL = "https://portal.example.edu"
	cfg.Portal.LoginURL = testLoginURL

	fast := func() *retry.Poller { return retry.NewPoller(50*time.Millisecond, time.Millisecond) }

	s := &Scraper{
		cfg:    cfg,
		sess:   sess,
		auth:   portal.NewAuthenticator(testLoginURL, portal.DefaultLoginSelectors(), fast(), false, nil),
		walker: content.NewWalker(sess, testSelectors, fast(), false, nil),
		runner: download.NewOrchestrator(store, staging, retry.NewPoller(500*time.Millisecond, time.Millisecond), false, nil),
		pacer:  ratelimit.NopPacer{},
		log:    logger.GetLogger(),
	}
	return &scraperFixture{scraper: s, sess: sess, root: root, staging: staging}
}

func TestRunMirrorsCoursesAndIsIdempotent(t *testing.T) {
	f := newScraperFixture(t)
	scriptLogin(f.sess, false)
	scriptCourse(t, f.sess, "https://portal.example.edu/cs101", "Syllabus.pdf", "Syllabus.pdf", f.staging)
	scriptCourse(t, f.sess, "https://portal.example.edu/ma202", "Problems.pdf", "Problems.pdf", f.staging)

	courses := []config.Course{
		{Code: "CS101", Name: "Intro to CS", URL: "https://portal.example.edu/cs101"},
		{Code: "MA202", Name: "Linear Algebra", URL: "https://portal.example.edu/ma202"},
	}

	rep, err := f.scraper.Run(context.Background(), testAccount, courses)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	downloaded, skipped, failed := rep.Totals()
	if downloaded != 2 || skipped != 0 || failed != 0 {
		t.Errorf("totals = %d/%d/%d, want 2 downloaded", downloaded, skipped, failed)
	}

	for _, want := range []string{
		filepath.Join("Intro to CS", "Syllabus.pdf"),
		filepath.Join("Linear Algebra", "Problems.pdf"),
	} {
		if _, err := os.Stat(filepath.Join(f.root, want)); err != nil {
			t.Errorf("destination file missing: %s", want)
		}
	}

	// Second run over the same tree downloads nothing new. The walker
	// still discovers everything; presence at the destination dedups.
	rep, err = f.scraper.Run(context.Background(), testAccount, courses)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	downloaded, skipped, _ = rep.Totals()
	if downloaded != 0 || skipped != 2 {
		t.Errorf("second run totals = %d downloaded %d skipped, want 0/2", downloaded, skipped)
	}
}

func TestRunAbortsOnRejectedCredentials(t *testing.T) {
	f := newScraperFixture(t)
	scriptLogin(f.sess, true)
	scriptCourse(t, f.sess, "https://portal.example.edu/cs101", "Syllabus.pdf", "Syllabus.pdf", f.staging)

	courses := []config.Course{
		{Code: "CS101", URL: "https://portal.example.edu/cs101"},
	}

	rep, err := f.scraper.Run(context.Background(), testAccount, courses)
	if err == nil {
		t.Fatal("expected login failure to abort the run")
	}
	if !errs.IsType(err, errs.ErrorTypeInvalidCredentials) {
		t.Errorf("expected invalid credentials error type, got %v", err)
	}
	if len(rep.Courses) != 0 {
		t.Error("no course should be attempted after a login failure")
	}
	for _, url := range f.sess.NavLog {
		if url != testLoginURL {
			t.Errorf("navigated to %s after failed login", url)
		}
	}
}

func TestRunContinuesPastUnreachableCourse(t *testing.T) {
	f := newScraperFixture(t)
	scriptLogin(f.sess, false)
	// CS101 has no scripted page: its root never loads
	scriptCourse(t, f.sess, "https://portal.example.edu/ma202", "Problems.pdf", "Problems.pdf", f.staging)

	courses := []config.Course{
		{Code: "CS101", URL: "https://portal.example.edu/cs101"},
		{Code: "MA202", Name: "Linear Algebra", URL: "https://portal.example.edu/ma202"},
	}

	rep, err := f.scraper.Run(context.Background(), testAccount, courses)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(rep.Courses) != 2 {
		t.Fatalf("expected 2 course reports, got %d", len(rep.Courses))
	}
	if !rep.Courses[0].RootFailed {
		t.Error("unreachable course not marked as root failure")
	}
	if rep.Courses[1].Downloaded != 1 {
		t.Error("later course did not complete after earlier root failure")
	}
	if _, err := os.Stat(filepath.Join(f.root, "Linear Algebra", "Problems.pdf")); err != nil {
		t.Error("later course file missing")
	}
}

func TestRunKeepsSameNamedCoursesApart(t *testing.T) {
	f := newScraperFixture(t)
	scriptLogin(f.sess, false)
	scriptCourse(t, f.sess, "https://portal.example.edu/sem1", "Outline.pdf", "outline-1.pdf", f.staging)
	scriptCourse(t, f.sess, "https://portal.example.edu/sem2", "Outline.pdf", "outline-2.pdf", f.staging)

	// Same display name, different courses
	courses := []config.Course{
		{Code: "111111", Name: "Seminar", URL: "https://portal.example.edu/sem1"},
		{Code: "222222", Name: "Seminar", URL: "https://portal.example.edu/sem2"},
	}

	rep, err := f.scraper.Run(context.Background(), testAccount, courses)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	downloaded, skipped, _ := rep.Totals()
	if downloaded != 2 || skipped != 0 {
		t.Errorf("totals = %d downloaded %d skipped, want 2/0", downloaded, skipped)
	}
	for _, want := range []string{
		filepath.Join("Seminar", "Outline.pdf"),
		filepath.Join("Seminar 222222", "Outline.pdf"),
	} {
		if _, err := os.Stat(filepath.Join(f.root, want)); err != nil {
			t.Errorf("destination file missing: %s", want)
		}
	}
}

func TestRunRecordsStructureWarnings(t *testing.T) {
	f := newScraperFixture(t)
	scriptLogin(f.sess, false)

	mystery := browser.NewFakeElement("Mystery widget")
	mystery.AddChild(".title", browser.NewFakeElement("Mystery widget"))
	root := browser.NewFakeElement("root")
	root.AddChild("li", mystery)
	f.sess.AddPage("https://portal.example.edu/cs101", root)

	courses := []config.Course{
		{Code: "CS101", URL: "https://portal.example.edu/cs101"},
	}

	rep, err := f.scraper.Run(context.Background(), testAccount, courses)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(rep.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(rep.Warnings))
	}
	if rep.Warnings[0].Course != "CS101" {
		t.Errorf("warning course = %q, want CS101", rep.Warnings[0].Course)
	}
}
