package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the course downloader
type Config struct {
	// Portal settings (URLs and page selectors)
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Browser driver settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Selectors override the built-in page selectors for portals with
	// customized themes
	Selectors SelectorsConfig `yaml:"selectors" json:"selectors"`

	// Pacing between portal actions
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Courses may be listed inline instead of in a separate courses.json
	Courses []Course `yaml:"courses" json:"courses"`
}

// PortalConfig holds portal-specific configuration
type PortalConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	LoginURL    string        `yaml:"login_url" json:"login_url"`
	LoginWait   time.Duration `yaml:"login_wait" json:"login_wait"`
	ManualLogin bool          `yaml:"manual_login" json:"manual_login"`
}

// OutputConfig holds destination-tree configuration
type OutputConfig struct {
	// DestinationRoot is the directory the course tree is mirrored under
	DestinationRoot string `yaml:"destination_root" json:"destination_root"`
	// ExtractArchives unpacks downloaded zip packages in place
	ExtractArchives bool `yaml:"extract_archives" json:"extract_archives"`
	// SavePageSnapshots writes an HTML snapshot for modules without a
	// downloadable package
	SavePageSnapshots bool `yaml:"save_page_snapshots" json:"save_page_snapshots"`
}

// BrowserConfig holds browser driver configuration
type BrowserConfig struct {
	Headless        bool          `yaml:"headless" json:"headless"`
	BinaryPath      string        `yaml:"binary_path" json:"binary_path"`
	StagingDir      string        `yaml:"staging_dir" json:"staging_dir"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" json:"navigate_timeout"`
	ExpandTimeout   time.Duration `yaml:"expand_timeout" json:"expand_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// SelectorsConfig holds per-portal selector overrides. Empty fields
// keep the built-in defaults.
type SelectorsConfig struct {
	Login LoginSelectorsConfig `yaml:"login" json:"login"`
	Tree  TreeSelectorsConfig  `yaml:"tree" json:"tree"`
}

// LoginSelectorsConfig overrides the login form selectors
type LoginSelectorsConfig struct {
	Username    string `yaml:"username" json:"username"`
	Password    string `yaml:"password" json:"password"`
	Submit      string `yaml:"submit" json:"submit"`
	Marker      string `yaml:"marker" json:"marker"`
	ErrorBanner string `yaml:"error_banner" json:"error_banner"`
}

// TreeSelectorsConfig overrides the content tree selectors
type TreeSelectorsConfig struct {
	ContentFrame string `yaml:"content_frame" json:"content_frame"`
	Children     string `yaml:"children" json:"children"`
	Label        string `yaml:"label" json:"label"`
	ExpandToggle string `yaml:"expand_toggle" json:"expand_toggle"`
	DownloadLink string `yaml:"download_link" json:"download_link"`
}

// PacingConfig spaces out portal actions to stay polite
type PacingConfig struct {
	ActionsPerMinute int `yaml:"actions_per_minute" json:"actions_per_minute"`
	Burst            int `yaml:"burst" json:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			LoginWait: 30 * time.Second,
		},
		Output: OutputConfig{
			DestinationRoot:   defaultDestinationRoot(),
			ExtractArchives:   true,
			SavePageSnapshots: true,
		},
		Browser: BrowserConfig{
			Headless:        true,
			StagingDir:      filepath.Join(os.TempDir(), "coursegrab-staging"),
			NavigateTimeout: 30 * time.Second,
			ExpandTimeout:   10 * time.Second,
			DownloadTimeout: 120 * time.Second,
			PollInterval:    500 * time.Millisecond,
		},
		Pacing: PacingConfig{
			ActionsPerMinute: 60,
			Burst:            5,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// defaultDestinationRoot mirrors the portal tree under the user's
// Documents folder when no override is given
func defaultDestinationRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./coursegrab"
	}
	return filepath.Join(home, "Documents", "coursegrab")
}

// Load builds the effective configuration: defaults, then config file,
// then .env / environment, then command line flags
func Load(configFile string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}

	// .env is optional; missing file is not an error
	_ = godotenv.Load()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".coursegrab.yaml",
		".coursegrab.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "coursegrab", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "coursegrab", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".coursegrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("COURSEGRAB_BASE_URL"); baseURL != "" {
		c.Portal.BaseURL = baseURL
	}
	if loginURL := os.Getenv("COURSEGRAB_LOGIN_URL"); loginURL != "" {
		c.Portal.LoginURL = loginURL
	}
	if dest := os.Getenv("COURSEGRAB_DESTINATION"); dest != "" {
		c.Output.DestinationRoot = dest
	}
	if staging := os.Getenv("COURSEGRAB_STAGING_DIR"); staging != "" {
		c.Browser.StagingDir = staging
	}
	if headless := os.Getenv("COURSEGRAB_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) != "false"
	}
	if apm := os.Getenv("COURSEGRAB_ACTIONS_PER_MINUTE"); apm != "" {
		var val int
		fmt.Sscanf(apm, "%d", &val)
		if val > 0 {
			c.Pacing.ActionsPerMinute = val
		}
	}
	if logLevel := os.Getenv("COURSEGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dest, ok := flags["directory"].(string); ok && dest != "" {
		c.Output.DestinationRoot = dest
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Portal.BaseURL = baseURL
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if manual, ok := flags["manual-login"].(bool); ok && manual {
		c.Portal.ManualLogin = true
		// Manual login needs a visible browser window
		c.Browser.Headless = false
	}
	if extract, ok := flags["extract"].(bool); ok {
		c.Output.ExtractArchives = extract
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.BaseURL == "" {
		errs = append(errs, errors.New("portal base URL is required"))
	}
	if c.Portal.LoginWait <= 0 {
		errs = append(errs, errors.New("login wait must be positive"))
	}

	if c.Output.DestinationRoot == "" {
		errs = append(errs, errors.New("destination root is required"))
	}

	if c.Browser.StagingDir == "" {
		errs = append(errs, errors.New("browser staging directory is required"))
	}
	if c.Browser.NavigateTimeout <= 0 {
		errs = append(errs, errors.New("navigate timeout must be positive"))
	}
	if c.Browser.ExpandTimeout <= 0 {
		errs = append(errs, errors.New("expand timeout must be positive"))
	}
	if c.Browser.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Browser.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}

	if c.Pacing.ActionsPerMinute <= 0 {
		errs = append(errs, errors.New("actions per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
