package content

import (
	"fmt"
	"path/filepath"
	"strings"
)

// illegal covers path separators plus characters some filesystems
// reject outright
const illegal = `/\<>:"|?*`

// SanitizeLabel turns an on-page label into a safe path segment:
// separators and control characters are stripped, whitespace collapsed.
// The result is never empty and never escapes its directory.
func SanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune(' ')
		case strings.ContainsRune(illegal, r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}

	clean := strings.Join(strings.Fields(b.String()), " ")
	clean = strings.Trim(clean, ". ")

	if clean == "" || clean == "." || clean == ".." {
		return "untitled"
	}
	return clean
}

// UniqueLabel resolves sibling collisions: the first occurrence keeps
// its name, later ones get a numeric suffix in encounter order,
// inserted before the extension ("Notes.pdf", "Notes (2).pdf").
// used tracks per-folder occurrence counts and is mutated.
func UniqueLabel(used map[string]int, label string) string {
	used[label]++
	n := used[label]
	if n == 1 {
		return label
	}

	ext := filepath.Ext(label)
	base := strings.TrimSuffix(label, ext)
	candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)

	// The suffixed name could itself collide with a real sibling;
	// keep counting until it is free
	for used[candidate] > 0 {
		n++
		used[label] = n
		candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
	used[candidate]++
	return candidate
}
