package portal

import (
	"context"
	"testing"
	"time"

	"coursegrab/pkg/browser"
	errs "coursegrab/pkg/errors"
	"coursegrab/pkg/retry"
)

const loginURL = "https://portal.example.edu/login"

// loginPage scripts the credential form. submit's OnClick stands in for
// the portal's reaction to the posted form.
func loginPage(sess *browser.FakeSession) (root, submit *browser.FakeElement) {
	sel := DefaultLoginSelectors()

	root = browser.NewFakeElement("login")
	root.AddChild(sel.Username, browser.NewFakeElement("username field"))
	root.AddChild(sel.Password, browser.NewFakeElement("password field"))
	submit = browser.NewFakeElement("submit")
	root.AddChild(sel.Submit, submit)
	sess.AddPage(loginURL, root)
	return root, submit
}

func newAuthenticator(manual bool) *Authenticator {
	poller := retry.NewPoller(50*time.Millisecond, time.Millisecond)
	return NewAuthenticator(loginURL, DefaultLoginSelectors(), poller, manual, nil)
}

func TestLoginSubmitsFormAndWaitsForMarker(t *testing.T) {
	sess := browser.NewFakeSession()
	root, submit := loginPage(sess)
	submit.OnClick = func() {
		// Portal accepts and renders the authenticated chrome
		root.AddChild(DefaultLoginSelectors().Marker, browser.NewFakeElement("nav"))
	}

	auth := newAuthenticator(false)
	if err := auth.Login(context.Background(), sess, "student01", "hunter2"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	sel := DefaultLoginSelectors()
	if sess.TypedKeys[sel.Username] != "student01" {
		t.Error("username was not typed into the form")
	}
	if sess.TypedKeys[sel.Password] != "hunter2" {
		t.Error("password was not typed into the form")
	}
	if submit.ClickCount != 1 {
		t.Errorf("submit clicked %d times, want 1", submit.ClickCount)
	}
}

func TestLoginRejectedCredentialsIsFatal(t *testing.T) {
	sess := browser.NewFakeSession()
	root, submit := loginPage(sess)
	submit.OnClick = func() {
		root.AddChild(DefaultLoginSelectors().ErrorBanner,
			browser.NewFakeElement("Incorrect user ID or password"))
	}

	auth := newAuthenticator(false)
	err := auth.Login(context.Background(), sess, "student01", "wrong")
	if err == nil {
		t.Fatal("expected credential rejection")
	}
	if !errs.IsType(err, errs.ErrorTypeInvalidCredentials) {
		t.Errorf("expected invalid credentials error type, got %v", err)
	}
	if !errs.IsFatal(err) {
		t.Error("credential rejection must be fatal for the whole run")
	}
}

func TestLoginIgnoresEmptyErrorBanner(t *testing.T) {
	sess := browser.NewFakeSession()
	root, submit := loginPage(sess)

	// ADFS ships an empty #errorText span in the DOM at all times;
	// only rendered text means rejection
	root.AddChild(DefaultLoginSelectors().ErrorBanner, browser.NewFakeElement(""))
	submit.OnClick = func() {
		root.AddChild(DefaultLoginSelectors().Marker, browser.NewFakeElement("nav"))
	}

	auth := newAuthenticator(false)
	if err := auth.Login(context.Background(), sess, "student01", "hunter2"); err != nil {
		t.Fatalf("empty banner misread as rejection: %v", err)
	}
}

func TestLoginBounceBackToFormIsInvalidCredentials(t *testing.T) {
	sess := browser.NewFakeSession()
	loginPage(sess)
	// Submit does nothing: the portal silently re-renders the form

	auth := newAuthenticator(false)
	err := auth.Login(context.Background(), sess, "student01", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errs.IsType(err, errs.ErrorTypeInvalidCredentials) {
		t.Errorf("expected invalid credentials error type, got %v", err)
	}
}

func TestLoginMarkerNeverAppearsIsTimeout(t *testing.T) {
	sess := browser.NewFakeSession()
	_, submit := loginPage(sess)

	// The portal moves to an interstitial page that never finishes
	interstitial := browser.NewFakeElement("loading")
	sess.AddPage("https://portal.example.edu/interstitial", interstitial)
	submit.OnClick = func() {
		sess.CurrentURL = "https://portal.example.edu/interstitial"
	}

	auth := newAuthenticator(false)
	err := auth.Login(context.Background(), sess, "student01", "hunter2")
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !errs.IsType(err, errs.ErrorTypeAuthTimeout) {
		t.Errorf("expected auth timeout error type, got %v", err)
	}
}

func TestLoginUnreachableLoginPage(t *testing.T) {
	sess := browser.NewFakeSession()
	// No page scripted: navigation fails

	auth := newAuthenticator(false)
	err := auth.Login(context.Background(), sess, "student01", "hunter2")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errs.IsType(err, errs.ErrorTypeAuthTimeout) {
		t.Errorf("expected auth timeout error type, got %v", err)
	}
}

func TestLoginEmptyCredentials(t *testing.T) {
	sess := browser.NewFakeSession()
	loginPage(sess)

	auth := newAuthenticator(false)
	err := auth.Login(context.Background(), sess, "", "")
	if !errs.IsType(err, errs.ErrorTypeInvalidCredentials) {
		t.Errorf("expected invalid credentials error type, got %v", err)
	}
}

func TestLoginIdempotentOnAuthenticatedSession(t *testing.T) {
	sess := browser.NewFakeSession()
	home := browser.NewFakeElement("home")
	home.AddChild(DefaultLoginSelectors().Marker, browser.NewFakeElement("nav"))
	sess.AddPage("https://portal.example.edu/home", home)
	sess.CurrentURL = "https://portal.example.edu/home"

	auth := newAuthenticator(false)
	if err := auth.Login(context.Background(), sess, "student01", "hunter2"); err != nil {
		t.Fatalf("Login on authenticated session failed: %v", err)
	}
	if len(sess.NavLog) != 0 {
		t.Error("authenticated session should not re-navigate to the login page")
	}
}

// markerAfterSleeps plants the marker once the poller has slept n times
type markerAfterSleeps struct {
	n    int
	root *browser.FakeElement
}

func (m *markerAfterSleeps) Sleep(context.Context, time.Duration) error {
	m.n--
	if m.n == 0 {
		m.root.AddChild(DefaultLoginSelectors().Marker, browser.NewFakeElement("nav"))
	}
	return nil
}

func TestManualLoginWaitsForUser(t *testing.T) {
	sess := browser.NewFakeSession()
	root, submit := loginPage(sess)

	poller := retry.NewPoller(50*time.Millisecond, time.Millisecond)
	poller.Sleeper = &markerAfterSleeps{n: 3, root: root}
	auth := NewAuthenticator(loginURL, DefaultLoginSelectors(), poller, true, nil)

	if err := auth.Login(context.Background(), sess, "", ""); err != nil {
		t.Fatalf("manual login failed: %v", err)
	}
	if len(sess.TypedKeys) != 0 || submit.ClickCount != 0 {
		t.Error("manual mode must not touch the credential form")
	}
}
