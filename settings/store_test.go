package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathsUseXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error: %v", err)
	}
	if want := filepath.Join(tmp, "scriptloc"); dir != want {
		t.Fatalf("DataDir() = %q, want %q", dir, want)
	}
	if want := filepath.Join(tmp, "scriptloc", "auth.json"); FilePath() != want {
		t.Fatalf("FilePath() = %q, want %q", FilePath(), want)
	}
	p, err := PromptsFilePath()
	if err != nil {
		t.Fatalf("PromptsFilePath() error: %v", err)
	}
	if want := filepath.Join(tmp, "scriptloc", "prompts.json"); p != want {
		t.Fatalf("PromptsFilePath() = %q, want %q", p, want)
	}
}

func TestSetGetRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetAPIKey("openai", "sk-test-123456", ""); err != nil {
		t.Fatalf("SetAPIKey(openai) error: %v", err)
	}
	if err := SetAPIKey("custom-openai", "local", "http://localhost:8080/v1"); err != nil {
		t.Fatalf("SetAPIKey(custom-openai) error: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmp, "scriptloc", "auth.json"))
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	if got := GetAPIKey("openai"); got != "sk-test-123456" {
		t.Fatalf("GetAPIKey(openai) = %q", got)
	}
	if got := GetBaseURL("custom-openai"); got != "http://localhost:8080/v1" {
		t.Fatalf("GetBaseURL(custom-openai) = %q", got)
	}
	if e := Get("openai"); e == nil || e.SavedAt == 0 {
		t.Fatalf("Get(openai) = %#v, want SavedAt set", e)
	}
	if got := strings.Join(Load().Providers(), ","); got != "custom-openai,openai" {
		t.Fatalf("Providers() = %q", got)
	}

	if err := Remove("openai"); err != nil {
		t.Fatalf("Remove(openai) error: %v", err)
	}
	if GetAPIKey("openai") != "" {
		t.Fatal("openai key still present after Remove")
	}
	if err := Remove("missing"); err != nil {
		t.Fatalf("Remove(missing) error: %v", err)
	}

	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if len(Load()) != 0 {
		t.Fatal("store not empty after RemoveAll")
	}
	if err := RemoveAll(); err != nil {
		t.Fatalf("second RemoveAll() error: %v", err)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir := filepath.Join(tmp, "scriptloc")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if s := Load(); s == nil || len(s) != 0 {
		t.Fatalf("Load() = %#v, want empty store", s)
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":                "****",
		"short":           "****",
		"12345678":        "****",
		"sk-abcdefghijkl": "sk-a...ijkl",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
