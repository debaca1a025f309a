package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pspoerri/tileslicer/internal/model"
)

func TestLoadProfile_EmptyPathReturnsDefaults(t *testing.T) {
	p, err := LoadProfile("")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p != DefaultProfile() {
		t.Fatalf("expected defaults, got %+v", p)
	}
}

func TestLoadProfile_PartialProfileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.toml")
	if err := os.WriteFile(path, []byte(`worker_count = 8`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.WorkerCount != 8 {
		t.Fatalf("expected worker_count 8, got %d", p.WorkerCount)
	}
	if p.DefaultStrategy != DefaultProfile().DefaultStrategy {
		t.Fatalf("expected default_strategy to fall back to default, got %s", p.DefaultStrategy)
	}
}

func TestLoadProfile_FullProfileOverridesAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.toml")
	content := `
worker_count = 2
default_storage_location = "object_store"
default_output_root = "/var/tiles"
default_strategy = "kdtree"
default_output_format = "glb"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.WorkerCount != 2 || p.DefaultOutputRoot != "/var/tiles" ||
		p.DefaultStrategy != model.StrategyKdTree || p.DefaultOutputFormat != model.FormatGLB {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestLoadProfile_MissingFileErrors(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing profile file")
	}
}
