package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "rbfmctl.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data_dir: /var/lib/rbfm\nlog_level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/rbfm" || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v, want overridden DataDir/LogLevel", cfg)
	}
	if cfg.ScanBatchSize != Default().ScanBatchSize {
		t.Fatalf("ScanBatchSize = %d, want default %d", cfg.ScanBatchSize, Default().ScanBatchSize)
	}
	if cfg.Sync != SyncAlways {
		t.Fatalf("Sync = %q, want default %q", cfg.Sync, SyncAlways)
	}
}

func TestLoadRejectsBadScanBatchSize(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scan_batch_size: 0\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load with scan_batch_size: 0 should fail")
	}
}

func TestLoadRejectsUnknownSyncPolicy(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sync: sometimes\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load with invalid sync policy should fail")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Load of missing file should fail")
	}
}
