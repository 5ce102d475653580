// Package portal drives the login flow against the learning portal.
package portal

import (
	"context"
	"errors"
	"strings"

	"coursegrab/pkg/browser"
	errs "coursegrab/pkg/errors"
	"coursegrab/pkg/logger"
	"coursegrab/pkg/retry"
)

// LoginSelectors locate the pieces of the portal's login flow
type LoginSelectors struct {
	// Username, Password and Submit make up the login form
	Username string
	Password string
	Submit   string
	// Marker is an element that only exists once authenticated
	Marker string
	// ErrorBanner is the portal's credential-rejection message
	ErrorBanner string
}

// DefaultLoginSelectors returns the selectors for the target portal's
// ADFS-style login form
func DefaultLoginSelectors() LoginSelectors {
	return LoginSelectors{
		Username:    "#userNameInput",
		Password:    "#passwordInput",
		Submit:      "#submitButton",
		Marker:      "d2l-navigation",
		ErrorBanner: "#errorText",
	}
}

// Authenticator logs the shared browser session into the portal
type Authenticator struct {
	loginURL  string
	selectors LoginSelectors
	poller    *retry.Poller
	manual    bool
	log       logger.Logger
}

// NewAuthenticator creates an authenticator. poller bounds the wait for
// the post-login marker.
func NewAuthenticator(loginURL string, selectors LoginSelectors, poller *retry.Poller, manual bool, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Authenticator{
		loginURL:  loginURL,
		selectors: selectors,
		poller:    poller,
		manual:    manual,
		log:       log,
	}
}

// Login authenticates the session. Calling it on an already
// authenticated session short-circuits on the post-login marker.
func (a *Authenticator) Login(ctx context.Context, sess browser.Session, username, password string) error {
	if a.authenticated(ctx, sess) {
		a.log.Debug("session already authenticated, skipping login")
		return nil
	}

	a.log.WithField("url", a.loginURL).Info("Navigating to login page")
	if err := sess.Navigate(ctx, a.loginURL); err != nil {
		return errs.Wrap(errs.ErrorTypeAuthTimeout, "login page did not load", err)
	}

	if a.authenticated(ctx, sess) {
		// A remembered session can land straight on the home page
		return nil
	}

	if a.manual {
		a.log.Info("Manual login: complete the form in the browser window")
		return a.waitForMarker(ctx, sess)
	}

	if err := a.submitForm(ctx, sess, username, password); err != nil {
		return err
	}

	return a.waitForMarker(ctx, sess)
}

// submitForm fills and submits the credential form
func (a *Authenticator) submitForm(ctx context.Context, sess browser.Session, username, password string) error {
	if username == "" || password == "" {
		return errs.New(errs.ErrorTypeInvalidCredentials, "username or password is empty")
	}

	if err := sess.SendKeys(ctx, a.selectors.Username, username); err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return errs.New(errs.ErrorTypePageStructure, "login form username field not found")
		}
		return errs.Wrap(errs.ErrorTypePageStructure, "failed to fill username", err)
	}
	if err := sess.SendKeys(ctx, a.selectors.Password, password); err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return errs.New(errs.ErrorTypePageStructure, "login form password field not found")
		}
		return errs.Wrap(errs.ErrorTypePageStructure, "failed to fill password", err)
	}
	if err := sess.Click(ctx, a.selectors.Submit); err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return errs.New(errs.ErrorTypePageStructure, "login form submit button not found")
		}
		return errs.Wrap(errs.ErrorTypePageStructure, "failed to submit login form", err)
	}

	a.log.WithField("username", username).Info("Credentials submitted")
	return nil
}

// waitForMarker polls for the post-login marker. A rejection banner or
// a bounce back to the login form means bad credentials; anything else
// that outlasts the wait budget is a timeout.
func (a *Authenticator) waitForMarker(ctx context.Context, sess browser.Session) error {
	err := a.poller.Until(ctx, errs.ErrorTypeAuthTimeout, "post-login page", func() (bool, error) {
		if banner, ferr := sess.Find(ctx, a.selectors.ErrorBanner); ferr == nil {
			// ADFS pages keep an empty banner element in the DOM at
			// all times; only rendered text is a rejection
			if text, terr := banner.Text(ctx); terr == nil && strings.TrimSpace(text) != "" {
				return false, errs.New(errs.ErrorTypeInvalidCredentials, "portal rejected the credentials")
			}
		}
		return a.authenticated(ctx, sess), nil
	})
	if err == nil {
		a.log.Info("Authenticated")
		return nil
	}
	if errs.IsType(err, errs.ErrorTypeAuthTimeout) && a.backOnLoginForm(ctx, sess) {
		return errs.New(errs.ErrorTypeInvalidCredentials, "portal returned to the login page")
	}
	return err
}

// authenticated probes for the post-login marker
func (a *Authenticator) authenticated(ctx context.Context, sess browser.Session) bool {
	_, err := sess.Find(ctx, a.selectors.Marker)
	return err == nil
}

// backOnLoginForm reports whether the session is still showing the
// credential form
func (a *Authenticator) backOnLoginForm(ctx context.Context, sess browser.Session) bool {
	if _, err := sess.Find(ctx, a.selectors.Password); err != nil {
		return false
	}
	loc, err := sess.Location(ctx)
	if err != nil {
		return true
	}
	return loc == a.loginURL || strings.Contains(loc, "login")
}
