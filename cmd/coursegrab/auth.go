package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"coursegrab/pkg/auth"
	"coursegrab/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage portal credentials",
	Long: `Manage stored portal credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (COURSEGRAB_USERNAME / COURSEGRAB_PASSWORD)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store portal credentials securely",
	Long: `Store portal credentials in the system keychain or an encrypted file.

You will be prompted for the username (if not provided) and the
password. The password is never echoed.`,
	Example: `  # Interactive login
  coursegrab auth login

  # Login with username
  coursegrab auth login student01`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:   "remove [username]",
	Short: "Remove stored credentials",
	Long: `Remove stored portal credentials.

If no username is provided you will be asked to confirm removal of the
only stored account, or to choose one from a list.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRemove,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored accounts",
	Long:  `Show all stored portal accounts with passwords masked.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(removeCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager: %v", err)
		os.Exit(1)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Portal username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read username: %v", err)
			os.Exit(1)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		ui.PrintError("Username is required")
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("Portal password (hidden): ")
	password, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read password: %v", err)
		os.Exit(1)
	}
	if password == "" {
		ui.PrintError("Password is required")
		os.Exit(1)
	}

	account := &auth.Account{
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials: %v", err)
		os.Exit(1)
	}

	ui.PrintSuccess("Account saved: " + username)
	fmt.Println("\nStart a run with:")
	fmt.Println("  coursegrab fetch")
}

func runRemove(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager: %v", err)
		os.Exit(1)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			ui.PrintError("Failed to remove account: %v", err)
			os.Exit(1)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found")
		return
	}

	reader := bufio.NewReader(os.Stdin)

	if len(accounts) == 1 {
		account := accounts[0]
		fmt.Printf("Remove account '%s'? (y/N): ", account.Username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
		if err := manager.Delete(account.Username); err != nil {
			ui.PrintError("Failed to remove account: %v", err)
			os.Exit(1)
		}
		ui.PrintSuccess("Account removed: " + account.Username)
		return
	}

	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Username)
	}
	fmt.Println("  0. Cancel")
	fmt.Print("\nChoice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
	if choice < 1 || choice > len(accounts) {
		return
	}

	account := accounts[choice-1]
	if err := manager.Delete(account.Username); err != nil {
		ui.PrintError("Failed to remove account: %v", err)
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + account.Username)
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager: %v", err)
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts: %v", err)
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'coursegrab auth login' to add one")
		if os.Getenv("COURSEGRAB_USERNAME") != "" {
			ui.PrintInfo("Environment", "COURSEGRAB_USERNAME is set and will be used")
		}
		return
	}

	fmt.Println("Stored accounts:")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("  %d. %s (password %s, updated %s)\n",
			i+1, sanitized.Username, sanitized.Password,
			sanitized.LastModified.Format("2006-01-02 15:04"))
	}
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
