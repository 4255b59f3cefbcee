package cmd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestRemoveIndexFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"3-faces-2024-01-02--10h-00m-00s.gob",
		"0-faces-2024-01-03--11h-30m-15s.gob",
		"holiday.jpg",
		"faces.gob",
		"notes-faces-draft.txt",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Nested folders are left alone.
	nested := filepath.Join(dir, "album")
	os.MkdirAll(nested, 0755)
	os.WriteFile(filepath.Join(nested, "1-faces-old.gob"), []byte("x"), 0644)

	removed, err := removeIndexFiles(dir)
	if err != nil {
		t.Fatalf("removeIndexFiles failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 files removed, got %d", removed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	sort.Strings(left)
	want := []string{"album", "faces.gob", "holiday.jpg", "notes-faces-draft.txt"}
	if strings.Join(left, ",") != strings.Join(want, ",") {
		t.Errorf("Remaining files = %v, want %v", left, want)
	}
	if _, err := os.Stat(filepath.Join(nested, "1-faces-old.gob")); err != nil {
		t.Errorf("Nested file should survive: %v", err)
	}
}

func TestRemoveIndexFiles_MissingDir(t *testing.T) {
	removed, err := removeIndexFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil || removed != 0 {
		t.Errorf("removeIndexFiles(missing) = %d, %v", removed, err)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(bufio.NewReader(strings.NewReader(tt.input)), &out, "Proceed?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Proceed? [y/N]") {
			t.Errorf("Prompt not written, got %q", out.String())
		}
	}
}
