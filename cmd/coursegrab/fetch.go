package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coursegrab/pkg/auth"
	"coursegrab/pkg/browser"
	"coursegrab/pkg/config"
	errs "coursegrab/pkg/errors"
	"coursegrab/pkg/logger"
	"coursegrab/pkg/scraper"
	"coursegrab/pkg/ui"
)

var (
	// Fetch command flags
	destDir     string
	baseURL     string
	courseFile  string
	accountName string
	manualLogin bool
	headless    bool
	extract     bool
	notify      bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download all course materials to the local mirror",
	Long: `Log into the portal once and mirror every configured course's content
tree to the destination directory.

Courses come from the config file's courses section or from a separate
courses.json file:

  {"courses": [{"name": "Intro to CS", "code": "123456"}]}

Credentials are resolved in order: a stored account ('coursegrab auth
login'), then COURSEGRAB_USERNAME / COURSEGRAB_PASSWORD. With
--manual-login the browser window opens visibly and you sign in there,
two-factor included.

Files already present at the destination are never touched, so an
interrupted run can simply be started again.`,
	Example: `  # Mirror all configured courses
  coursegrab fetch

  # Mirror into a specific directory
  coursegrab fetch --directory ~/University/2026-fall

  # Sign in by hand in a visible browser window
  coursegrab fetch --manual-login

  # Use a separate course list
  coursegrab fetch --courses ./courses.json`,
	Run: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&destDir, "directory", "d", "", "destination directory (default: ~/Documents/coursegrab)")
	fetchCmd.Flags().StringVar(&baseURL, "base-url", "", "portal base URL")
	fetchCmd.Flags().StringVar(&courseFile, "courses", "", "path to a courses.json file")
	fetchCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	fetchCmd.Flags().BoolVar(&manualLogin, "manual-login", false, "log in by hand in a visible browser window")
	fetchCmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	fetchCmd.Flags().BoolVar(&extract, "extract", true, "unpack downloaded zip packages in place")
	fetchCmd.Flags().BoolVar(&notify, "notifications", true, "send a desktop notification when the run finishes")
}

func runFetch(cmd *cobra.Command, args []string) {
	flags := map[string]interface{}{
		"log-level": logLevel,
	}
	if destDir != "" {
		flags["directory"] = destDir
	}
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if manualLogin {
		flags["manual-login"] = true
	}
	if cmd.Flags().Changed("extract") {
		flags["extract"] = extract
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	logger.Initialize(&cfg.Logging)
	logger.WithField("version", version).Info("coursegrab starting")

	courses := cfg.Courses
	if courseFile != "" {
		courses, err = config.LoadCourses(courseFile)
		if err != nil {
			ui.PrintError("Failed to load course list: %v", err)
			os.Exit(1)
		}
	}
	if len(courses) == 0 {
		ui.PrintError("No courses configured")
		fmt.Println("\nAdd a courses section to the config file or pass --courses courses.json")
		os.Exit(1)
	}

	account := resolveAccount(cfg)

	// Ctrl-C closes the browser cleanly instead of orphaning it
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Portal.ManualLogin {
		auth.ShowManualLoginGuide(cfg.Portal.LoginURL)
	}

	ui.PrintInfo("Destination", cfg.Output.DestinationRoot)
	ui.PrintInfo("Courses", fmt.Sprintf("%d configured", len(courses)))

	sess, err := browser.Launch(ctx, &cfg.Browser)
	if err != nil {
		ui.PrintError("Failed to launch browser: %v", err)
		os.Exit(1)
	}
	defer sess.Close()

	s, err := scraper.New(cfg, sess)
	if err != nil {
		ui.PrintError("Failed to initialize: %v", err)
		os.Exit(1)
	}
	progress := ui.NewRunProgress()
	s.SetProgress(progress)

	rep, err := s.Run(ctx, account, courses)
	if err != nil {
		logger.WithError(err).Error("Run aborted")
		if errs.IsType(err, errs.ErrorTypeInvalidCredentials) {
			ui.PrintError("The portal rejected the credentials")
			fmt.Println("\nUpdate them with 'coursegrab auth login', or use --manual-login.")
		} else {
			ui.PrintError("Run aborted: %v", err)
		}
		if notify {
			ui.NewNotifier().SendError("coursegrab", "Run aborted: "+err.Error())
		}
		os.Exit(1)
	}

	fmt.Println()
	fmt.Print(rep.Summary())

	// Per-task failures are reported in the summary but do not fail
	// the run; only an aborted login does
	downloaded, _, failed := rep.Totals()
	if notify {
		ui.NewNotifier().SendSuccess("coursegrab",
			fmt.Sprintf("Run finished: %d new files, %d failures", downloaded, failed))
	}
}

// resolveAccount finds portal credentials, or nil in manual-login mode
func resolveAccount(cfg *config.Config) *auth.Account {
	if cfg.Portal.ManualLogin {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager: %v", err)
		os.Exit(1)
	}

	if accountName != "" {
		account, err := manager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found: %s", accountName)
			fmt.Println("\nUse 'coursegrab auth status' to see stored accounts.")
			os.Exit(1)
		}
		return account
	}

	account, err := manager.RetrieveDefault()
	if err != nil {
		auth.ShowCredentialSetupGuide()
		os.Exit(1)
	}
	ui.PrintInfo("Using account", account.Username)
	return account
}
