package storage

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	errs "coursegrab/pkg/errors"
)

func TestPlaceMovesIntoNestedDestination(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()

	manager, err := NewManager(root)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	staged := filepath.Join(staging, "package.zip")
	if err := os.WriteFile(staged, []byte("zip data"), 0644); err != nil {
		t.Fatal(err)
	}

	rel := filepath.Join("CS101", "Week1", "Notes.pdf")
	if manager.Exists(rel) {
		t.Error("Exists returned true before placement")
	}

	if err := manager.Place(staged, rel); err != nil {
		t.Fatalf("Place failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(root, "CS101", "Week1", "Notes.pdf"))
	if err != nil {
		t.Fatalf("destination file missing: %v", err)
	}
	if string(content) != "zip data" {
		t.Error("destination content does not match staged file")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Error("staged file was not removed")
	}
	if !manager.Exists(rel) {
		t.Error("Exists returned false after placement")
	}
}

func TestPlaceNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()

	manager, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "existing.pdf"), []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}
	staged := filepath.Join(staging, "new.pdf")
	if err := os.WriteFile(staged, []byte("replacement"), 0644); err != nil {
		t.Fatal(err)
	}

	err = manager.Place(staged, "existing.pdf")
	if err == nil {
		t.Fatal("expected error placing over existing file")
	}
	if !errs.IsType(err, errs.ErrorTypeFilesystem) {
		t.Errorf("expected filesystem error type, got %v", err)
	}

	content, _ := os.ReadFile(filepath.Join(root, "existing.pdf"))
	if string(content) != "original" {
		t.Error("existing file was modified")
	}
}

func TestPlaceRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()

	manager, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	staged := filepath.Join(staging, "evil.txt")
	if err := os.WriteFile(staged, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := manager.Place(staged, filepath.Join("..", "outside.txt")); err == nil {
		t.Error("expected error for path escaping the root")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "outside.txt")); err == nil {
		t.Error("file was written outside the destination root")
	}
}

func TestWriteSnapshot(t *testing.T) {
	root := t.TempDir()

	manager, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	rel := filepath.Join("CS101", "Announcements.html")
	if err := manager.WriteSnapshot(rel, "<html>content</html>"); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "<html>content</html>" {
		t.Error("snapshot content mismatch")
	}

	if err := manager.WriteSnapshot(rel, "<html>other</html>"); err == nil {
		t.Error("expected error overwriting snapshot")
	}
}

func TestExtractArchive(t *testing.T) {
	root := t.TempDir()

	manager, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	// Build a zip with a nested file and a Table of Contents index
	dir := filepath.Join(root, "CS101", "Week1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	archivePath := filepath.Join(dir, "Week1.zip")
	buildZip(t, archivePath, map[string]string{
		"slides/lecture1.pdf":    "lecture one",
		"readme.txt":             "read me",
		"Table of Contents.html": "toc",
	})

	rel := filepath.Join("CS101", "Week1", "Week1.zip")
	if err := manager.ExtractArchive(rel); err != nil {
		t.Fatalf("ExtractArchive failed: %v", err)
	}

	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Error("archive was not removed after extraction")
	}
	pkg := filepath.Join(dir, "Week1")
	content, err := os.ReadFile(filepath.Join(pkg, "slides", "lecture1.pdf"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(content) != "lecture one" {
		t.Error("extracted content mismatch")
	}
	if _, err := os.Stat(filepath.Join(pkg, "Table of Contents.html")); err == nil {
		t.Error("Table of Contents index was extracted")
	}
	if !manager.Placed(rel) {
		t.Error("Placed does not see the extracted package directory")
	}
}

func TestExtractArchiveKeepsExistingFiles(t *testing.T) {
	root := t.TempDir()

	manager, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	// A file from an earlier extraction is already in the package dir
	dir := filepath.Join(root, "CS101")
	if err := os.MkdirAll(filepath.Join(dir, "Week1"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Week1", "readme.txt"), []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(dir, "Week1.zip")
	buildZip(t, archivePath, map[string]string{"readme.txt": "replacement"})

	if err := manager.ExtractArchive(filepath.Join("CS101", "Week1.zip")); err != nil {
		t.Fatalf("ExtractArchive failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "Week1", "readme.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "original" {
		t.Error("previously extracted file was overwritten")
	}
}

func TestPlacedRecognizesBorrowedExtension(t *testing.T) {
	root := t.TempDir()

	manager, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(root, "CS101")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Lecture Recording.mp4"), []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	if !manager.Placed(filepath.Join("CS101", "Lecture Recording")) {
		t.Error("extension-less label did not match its placed file")
	}
	if manager.Placed(filepath.Join("CS101", "Lecture")) {
		t.Error("matched an unrelated sibling")
	}
	if manager.Placed(filepath.Join("CS101", "Lecture Recording.pdf")) {
		t.Error("matched a path with a different extension")
	}
}

func buildZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(out)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
}
