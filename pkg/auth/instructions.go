package auth

import (
	"fmt"
	"strings"
)

// ShowManualLoginGuide explains the manual-login flow before the
// browser window opens
func ShowManualLoginGuide(loginURL string) {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("MANUAL LOGIN")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
	fmt.Println("A browser window will open at:")
	fmt.Printf("   %s\n", loginURL)
	fmt.Println()
	fmt.Println("Log in there yourself, including any two-factor prompt.")
	fmt.Println("The download starts automatically once the portal home page")
	fmt.Println("appears. Leave the window open for the whole run.")
	fmt.Println()
}

// ShowCredentialSetupGuide explains how to provide credentials for
// unattended runs
func ShowCredentialSetupGuide() {
	fmt.Println("No stored credentials found. Either:")
	fmt.Println("  - run 'coursegrab auth login' to store them in the system keychain")
	fmt.Println("  - set COURSEGRAB_USERNAME and COURSEGRAB_PASSWORD in the environment")
	fmt.Println("  - pass --manual-login to sign in through the browser window")
}
