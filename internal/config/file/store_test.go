package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"netorch/internal/config"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "config.json"))
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Platform = "mellanox-x86"

	if err := s.Save(ctx, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.Platform != "mellanox-x86" {
		t.Fatalf("expected round-tripped platform, got %+v", got)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "config.json"))

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil config, got %+v", got)
	}
}

func TestStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "subdir", "nested")
	configPath := filepath.Join(dir, "config.json")

	s := NewStore(configPath)
	ctx := context.Background()

	if err := s.Save(ctx, config.DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file should exist: %v", err)
	}
}

func TestStoreInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	if err := os.WriteFile(configPath, []byte("{invalid}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewStore(configPath)
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error loading invalid JSON, got nil")
	}
}

func TestStoreUnversionedFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	data := `{"tables": [{"name": "ROUTE_TABLE", "priority": 10}]}`
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewStore(configPath)
	_, err := s.Load(context.Background())
	if err == nil {
		t.Fatal("expected error for unversioned config, got nil")
	}
	if !strings.Contains(err.Error(), "unversioned") {
		t.Errorf("expected error mentioning 'unversioned', got: %v", err)
	}
}

func TestStoreJSONIsHumanReadable(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	s := NewStore(configPath)
	if err := s.Save(context.Background(), config.DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "\n") {
		t.Error("expected indented JSON with newlines")
	}
	if !strings.Contains(content, `"version"`) {
		t.Error("expected versioned envelope with 'version' field")
	}
}

func TestStoreReloadFromDisk(t *testing.T) {
	dir := t.TempDir()

	s1 := NewStore(filepath.Join(dir, "config.json"))
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Platform = "broadcom"
	if err := s1.Save(ctx, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2 := NewStore(filepath.Join(dir, "config.json"))
	got, err := s2.Load(ctx)
	if err != nil {
		t.Fatalf("Load from new store: %v", err)
	}
	if got == nil || got.Platform != "broadcom" {
		t.Fatalf("expected platform broadcom, got %+v", got)
	}
}
