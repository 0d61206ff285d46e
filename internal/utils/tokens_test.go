package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/insightloom/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"exact", "abcdefgh", 2},
		{"rounds up", "abcdefghi", 3},
		{"runes not bytes", "ééééé", 2},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("%s: got %d want %d", c.name, got, c.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"within limit", "short", 10, "short"},
		{"exact limit", "12345", 5, "12345"},
		{"no newline", "abcdefghij", 4, "abcd" + utils.TruncationMarker},
		{"cut at last newline", "line one\nline two\nline three", 20, "line one\nline two" + utils.TruncationMarker},
		{"newline only past limit", "abcdef\nxyz", 5, "abcde" + utils.TruncationMarker},
		{"newline at start", "\nabcdef", 4, "" + utils.TruncationMarker},
	}
	for _, c := range cases {
		if got := utils.TruncateText(c.in, c.max); got != c.want {
			t.Errorf("%s: got %q want %q", c.name, got, c.want)
		}
	}
}

func TestSafeWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("PrettyJSON: %v", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(got), "\"a\": 1") {
		t.Fatalf("unexpected content: %s", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestSafeWriteFileCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "insights.json")
	if err := utils.SafeWriteFile(path, []byte("{}\n")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "{}\n" {
		t.Fatalf("unexpected content: %q", got)
	}
}
