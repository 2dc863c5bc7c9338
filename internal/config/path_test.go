package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDGOverride(t *testing.T) {
	originalXDG := os.Getenv("XDG_DATA_HOME")
	t.Cleanup(func() {
		if originalXDG != "" {
			os.Setenv("XDG_DATA_HOME", originalXDG)
		} else {
			os.Unsetenv("XDG_DATA_HOME")
		}
	})

	os.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/ledgerq" {
		t.Errorf("expected /custom/data/ledgerq, got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	originalHome := os.Getenv("HOME")
	os.Unsetenv("HOME")
	t.Cleanup(func() {
		if originalHome != "" {
			os.Setenv("HOME", originalHome)
		}
	})

	result := DefaultDataDir()
	if result == "" {
		t.Error("expected non-empty result even when HOME is not set")
	}
	if result != "./data" {
		t.Errorf("expected fallback to './data', got %s", result)
	}
}

func TestIsDir(t *testing.T) {
	if !isDir(".") {
		t.Error("isDir(.) = false")
	}
	if isDir("/non/existent/path/that/does/not/exist") {
		t.Error("isDir on missing path = true")
	}
	if isDir(os.Args[0]) {
		t.Error("isDir on a file = true")
	}
}

func TestDefaultDataDirShape(t *testing.T) {
	result := DefaultDataDir()
	if result == "" {
		t.Error("DefaultDataDir should not return empty string")
	}
	if !filepath.IsAbs(result) && !strings.HasPrefix(result, "./") {
		t.Errorf("expected absolute path or ./ prefix, got %s", result)
	}
	if result != "./data" && !strings.Contains(result, "ledgerq") {
		t.Errorf("expected 'ledgerq' in the path, got %s", result)
	}

	if again := DefaultDataDir(); again != result {
		t.Errorf("DefaultDataDir not stable: %s vs %s", result, again)
	}
}
