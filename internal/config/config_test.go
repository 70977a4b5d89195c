package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DRIVE_BACKEND", "dooray")
	t.Setenv("DRIVE_API_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.TTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.Index.TTL)
	}
	if cfg.Index.BuildTimeout != 5*time.Minute {
		t.Errorf("expected 5m build timeout, got %v", cfg.Index.BuildTimeout)
	}
	if cfg.Search.Budget != 12*time.Second || cfg.Search.FastBudget != 3500*time.Millisecond {
		t.Errorf("unexpected budgets: %v / %v", cfg.Search.Budget, cfg.Search.FastBudget)
	}
	if cfg.Search.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Search.Workers)
	}
	if cfg.Search.StrictCaps != DefaultStrictCaps() {
		t.Errorf("unexpected strict caps: %+v", cfg.Search.StrictCaps)
	}
	if cfg.Search.BroadCaps.PDF != 120 || cfg.Search.BroadPDFNameCap != 24 {
		t.Errorf("unexpected broad pdf caps: %d / %d", cfg.Search.BroadCaps.PDF, cfg.Search.BroadPDFNameCap)
	}
	if cfg.Drive.PageSize != 50 {
		t.Errorf("expected page size 50, got %d", cfg.Drive.PageSize)
	}
}

func TestLoadEnvOverridesCap(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	unsetenv(t, "DRIVE_BACKEND")
	t.Setenv("DRIVE_API_TOKEN", "tok")
	t.Setenv("SEARCH_STRICT_PDF", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.StrictCaps.PDF != 3 {
		t.Errorf("expected overridden pdf cap 3, got %d", cfg.Search.StrictCaps.PDF)
	}
	if cfg.Search.StrictCaps.TXT != 12 {
		t.Errorf("expected untouched txt cap 12, got %d", cfg.Search.StrictCaps.TXT)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DRIVE_BACKEND", "dooray")
	t.Setenv("DRIVE_API_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DRIVE_API_TOKEN")
	}
}

func TestLoadS3RequiresBucket(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DRIVE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without S3_BUCKET")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yanode.yaml")
	body := "drive:\n  backend: s3\ns3:\n  bucket: docs\nindex:\n  ttl: 10m\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	unsetenv(t, "DRIVE_BACKEND")
	unsetenv(t, "S3_BUCKET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Drive.Backend != "s3" || cfg.S3.Bucket != "docs" {
		t.Errorf("unexpected drive config: %+v %+v", cfg.Drive, cfg.S3)
	}
	if cfg.Index.TTL != 10*time.Minute {
		t.Errorf("expected 10m TTL, got %v", cfg.Index.TTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
