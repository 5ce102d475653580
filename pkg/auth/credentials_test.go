package auth

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Username:     "student01",
		Password:     "portal_password_123",
		LastModified: time.Now(),
	}

	if err := manager.Store(account); err != nil {
		t.Errorf("Failed to store account: %v", err)
	}

	retrieved, err := manager.Retrieve("student01")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Username != account.Username {
		t.Errorf("Username mismatch: got %s, want %s", retrieved.Username, account.Username)
	}
	if retrieved.Password != account.Password {
		t.Error("Password mismatch after round trip")
	}

	accounts, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account in list, got %d", len(accounts))
	}

	sanitized := SanitizeAccount(account)
	if sanitized.Password == account.Password {
		t.Error("Password should be masked")
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}

	if err := manager.Delete("student01"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("student01"); err == nil {
		t.Error("Expected error retrieving deleted account")
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerRejectsIncompleteAccount(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(&Account{Password: "x"}); err == nil {
		t.Error("Expected error storing account without username")
	}
	if err := manager.Store(&Account{Username: "x"}); err == nil {
		t.Error("Expected error storing account without password")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "creds.enc")

	os.Setenv("COURSEGRAB_PASSPHRASE", "test_passphrase_123")
	defer os.Unsetenv("COURSEGRAB_PASSPHRASE")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	account := &Account{
		Username: "student02",
		Password: "secret",
	}

	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	// The file on disk must not contain the plaintext password
	raw, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("secret")) {
		t.Error("encrypted file contains plaintext password")
	}

	retrieved, err := store.Retrieve("student02")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Password != account.Password {
		t.Error("Password mismatch after encryption round trip")
	}

	if err := store.Delete("student02"); err != nil {
		t.Errorf("Failed to delete: %v", err)
	}
	if store.Exists("student02") {
		t.Error("account still exists after deletion")
	}
}

func TestEnvironmentStore(t *testing.T) {
	os.Setenv("COURSEGRAB_USERNAME", "envuser")
	os.Setenv("COURSEGRAB_PASSWORD", "envpass")
	defer os.Unsetenv("COURSEGRAB_USERNAME")
	defer os.Unsetenv("COURSEGRAB_PASSWORD")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Username != "envuser" || account.Password != "envpass" {
		t.Error("environment account mismatch")
	}

	if _, err := store.Retrieve("someone_else"); err == nil {
		t.Error("expected mismatch error for different username")
	}

	if err := store.Store(account); err != ErrStoreUnavailable {
		t.Error("environment store should reject writes")
	}
}

func TestManagerFallsBackAcrossStores(t *testing.T) {
	primary := NewMockStore()
	primary.StoreError = ErrStoreUnavailable
	secondary := NewMockStore()

	manager := NewMockManagerWithStores(primary, secondary)

	account := &Account{Username: "student03", Password: "pw"}
	if err := manager.Store(account); err != nil {
		t.Fatalf("Store did not fall back: %v", err)
	}
	if primary.Count() != 0 {
		t.Error("failing store should hold nothing")
	}
	if secondary.Count() != 1 {
		t.Error("fallback store should hold the account")
	}

	if _, err := manager.Retrieve("student03"); err != nil {
		t.Errorf("Retrieve across stores failed: %v", err)
	}
}
