package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Processing.NumCores != runtime.NumCPU() {
		t.Errorf("Expected %d cores, got %d", runtime.NumCPU(), cfg.Processing.NumCores)
	}
	if cfg.Processing.MedianShift != "valid" {
		t.Errorf("Expected median shift valid, got %s", cfg.Processing.MedianShift)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.BandConfig.Dir != "data" {
		t.Errorf("Expected default band config dir, got %s", cfg.BandConfig.Dir)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "run.yaml")

	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.Processing.MedianShift = "all"
	cfg.Processing.MaxBandBytes = 1 << 30
	cfg.Ledger.Path = "runs.db"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Processing.NumCores != 3 {
		t.Errorf("Expected 3 cores, got %d", loaded.Processing.NumCores)
	}
	if loaded.Processing.MedianShift != "all" {
		t.Errorf("Expected median shift all, got %s", loaded.Processing.MedianShift)
	}
	if loaded.Processing.MaxBandBytes != 1<<30 {
		t.Errorf("Expected max band bytes %d, got %d", 1<<30, loaded.Processing.MaxBandBytes)
	}
	if loaded.Ledger.Path != "runs.db" {
		t.Errorf("Expected ledger path runs.db, got %s", loaded.Ledger.Path)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := "bandConfig:\n  file: /etc/destripe/custom.dat\noutput:\n  quicklookDir: ql\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Processing.MedianShift != "valid" {
		t.Errorf("Expected default median shift to survive, got %s", cfg.Processing.MedianShift)
	}
	if cfg.Output.QuicklookDir != "ql" {
		t.Errorf("Expected quicklook dir ql, got %s", cfg.Output.QuicklookDir)
	}
	if got := cfg.BandConfigPath("MOD021KM_destripe_config.dat"); got != "/etc/destripe/custom.dat" {
		t.Errorf("Expected explicit band config file, got %s", got)
	}
}

func TestBandConfigPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BandConfig.Dir = "/opt/prds"
	want := filepath.Join("/opt/prds", "MYD02HKM_destripe_config.dat")
	if got := cfg.BandConfigPath("MYD02HKM_destripe_config.dat"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"median shift": "processing:\n  medianShift: sometimes\n",
		"cores":        "processing:\n  numCores: -2\n",
		"budget":       "processing:\n  maxBandBytes: -1\n",
		"yaml":         "processing: [\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.yaml")
			if err := os.WriteFile(path, []byte(data), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected error for invalid config")
			}
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to exist: %v", err)
	}
}
