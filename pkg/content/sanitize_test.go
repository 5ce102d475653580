package content

import "testing"

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Syllabus.pdf", "Syllabus.pdf"},
		{"path separators", "week/1\\notes.pdf", "week-1-notes.pdf"},
		{"control characters", "notes\x00\x1f.pdf", "notes .pdf"},
		{"collapse whitespace", "  Week   1   Notes  ", "Week 1 Notes"},
		{"newlines", "Unit 1\nIntroduction", "Unit 1 Introduction"},
		{"illegal filesystem chars", `a<b>c:d"e|f?g*h`, "a-b-c-d-e-f-g-h"},
		{"empty", "", "untitled"},
		{"only separators", "///", "untitled"},
		{"dot", ".", "untitled"},
		{"dotdot", "..", "untitled"},
		{"trailing dots", "name...", "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeLabel(tt.input); got != tt.want {
				t.Errorf("SanitizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeLabelNeverEscapesRoot(t *testing.T) {
	hostile := []string{"../../../etc/passwd", "..\\..\\win", "/absolute/path", ".."}
	for _, input := range hostile {
		got := SanitizeLabel(input)
		if got == "" || got == ".." || got[0] == '/' {
			t.Errorf("SanitizeLabel(%q) = %q can escape the destination root", input, got)
		}
		for _, r := range got {
			if r == '/' || r == '\\' {
				t.Errorf("SanitizeLabel(%q) = %q still contains a separator", input, got)
			}
		}
	}
}

func TestUniqueLabelSuffixesInEncounterOrder(t *testing.T) {
	used := make(map[string]int)

	got := []string{
		UniqueLabel(used, "Notes.pdf"),
		UniqueLabel(used, "Notes.pdf"),
		UniqueLabel(used, "Notes.pdf"),
		UniqueLabel(used, "Other.pdf"),
	}
	want := []string{"Notes.pdf", "Notes (2).pdf", "Notes (3).pdf", "Other.pdf"}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUniqueLabelAvoidsExistingSuffixedSibling(t *testing.T) {
	used := make(map[string]int)

	first := UniqueLabel(used, "Notes (2).pdf")
	second := UniqueLabel(used, "Notes.pdf")
	third := UniqueLabel(used, "Notes.pdf")

	if first != "Notes (2).pdf" || second != "Notes.pdf" {
		t.Fatalf("unexpected first labels: %q, %q", first, second)
	}
	if third == "Notes (2).pdf" {
		t.Errorf("suffix collided with a real sibling: %q", third)
	}
	if third != "Notes (3).pdf" {
		t.Errorf("third = %q, want Notes (3).pdf", third)
	}
}
