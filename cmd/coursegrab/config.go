package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"coursegrab/pkg/config"
	"coursegrab/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage coursegrab configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (COURSEGRAB_*)
  - Configuration file (.coursegrab.yaml)
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as '.coursegrab.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after merging all sources:
flags, environment variables, the configuration file, and defaults.`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".coursegrab.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists: %s", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# coursegrab configuration file
#
# Environment variables prefixed with COURSEGRAB_ override these values,
# for example COURSEGRAB_BASE_URL or COURSEGRAB_DESTINATION.

# Portal settings
portal:
  # Root of the learning portal (required)
  base_url: "https://mycourses.example.edu"

  # Login page. Leave empty to start at base_url and follow the
  # sign-in redirect.
  login_url: "https://mycourses.example.edu/d2l/login"

  # How long to wait for the post-login page
  login_wait: 30s

  # Open a visible browser window and log in by hand
  # (required for portals with two-factor prompts)
  manual_login: false

# Destination tree
output:
  # Where the course tree is mirrored (default: ~/Documents/coursegrab)
  destination_root: ""

  # Unpack downloaded zip content packages in place
  extract_archives: true

  # Save an HTML snapshot for modules without downloadable files
  save_page_snapshots: true

# Browser driver
browser:
  headless: true

  # Explicit Chrome/Chromium binary (empty: autodetect)
  binary_path: ""

  # Where the browser parks files before they are moved into place
  staging_dir: ""

  navigate_timeout: 30s
  expand_timeout: 10s
  download_timeout: 2m
  poll_interval: 500ms

# Page selector overrides for portals with customized themes.
# Empty fields keep the built-in Brightspace defaults.
#selectors:
#  login:
#    username: "#userNameInput"
#    password: "#passwordInput"
#    submit: "#submitButton"
#    marker: "d2l-navigation"
#    error_banner: "#errorText"
#  tree:
#    content_frame: "iframe"
#    download_link: ":scope .download-content-button"

# Pacing between portal actions
pacing:
  actions_per_minute: 60
  burst: 5

# Logging
logging:
  # debug, info, warn, error
  level: "info"

  # Log file path (empty: stderr only)
  file: ""

# Courses to mirror. Can also live in a separate courses.json passed
# with --courses.
courses:
  - name: "Intro to CS"
    code: "123456"
  - name: "Linear Algebra"
    code: "234567"
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file: %v", err)
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file and set your portal's base_url and courses")
	fmt.Println("2. Store credentials with 'coursegrab auth login'")
	fmt.Println("3. Start mirroring with 'coursegrab fetch'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration: %v", err)
		os.Exit(1)
	}

	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (COURSEGRAB_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in standard locations)")
	}
	fmt.Println("4. Default values")
}
