package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("PORT", "")
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.Port != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.BasicConfig.Port)
	}
	if cfg.Address() != "0.0.0.0:10000" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if cfg.BasicConfig.KeepAliveSeconds != DefaultKeepAlive {
		t.Fatalf("unexpected keep-alive %d", cfg.BasicConfig.KeepAliveSeconds)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadJSONWithPortOverride(t *testing.T) {
	t.Setenv("PORT", "8123")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"basic_config": {"port": 9000, "keep_alive_seconds": 30, "max_workers": 4},
		"database": {"driver": "sqlite3", "dsn": "history.db"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.Port != 8123 {
		t.Fatalf("PORT should override file port, got %d", cfg.BasicConfig.Port)
	}
	if cfg.BasicConfig.KeepAliveSeconds != 30 || cfg.BasicConfig.MaxWorkers != 4 {
		t.Fatalf("file values not applied: %+v", cfg.BasicConfig)
	}
	if cfg.Database.DSN != filepath.Join(dir, "history.db") {
		t.Fatalf("sqlite dsn should be resolved relative to config, got %s", cfg.Database.DSN)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "basic_config:\n  host: 127.0.0.1\n  port: 7000\nredis:\n  enabled: true\n  result_ttl_minutes: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address() != "127.0.0.1:7000" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if !cfg.Redis.Enabled || cfg.Redis.ResultTTL != 5 || cfg.Redis.Port != 6379 {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid PORT error")
	}
}

func TestDefaultWorkerSettings(t *testing.T) {
	cfg := Default()
	b := cfg.BasicConfig
	if b.MinWorkers != 1 || b.MaxWorkers < b.MinWorkers || b.QueueSize != 64 {
		t.Fatalf("unexpected worker defaults %+v", b)
	}
	if b.TempFileTTL != 60 || b.TempSweepInterval != 10 || cfg.Redis.ResultTTL != 60 {
		t.Fatalf("unexpected ttl defaults %+v %+v", b, cfg.Redis)
	}
	if cfg.Redis.Enabled || cfg.Database.Driver != "" {
		t.Fatalf("optional backends should be disabled by default")
	}
}

func TestDefaultDecoderBinaries(t *testing.T) {
	cfg := Default()
	if cfg.Analysis.FFmpegBin != "ffmpeg" || cfg.Analysis.FFprobeBin != "ffprobe" {
		t.Fatalf("unexpected decoder binaries %q %q", cfg.Analysis.FFmpegBin, cfg.Analysis.FFprobeBin)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("analysis:\n  ffmpeg_bin: /opt/ffmpeg/bin/ffmpeg\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.FFmpegBin != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("configured ffmpeg_bin not kept: %q", cfg.Analysis.FFmpegBin)
	}
	if cfg.Analysis.FFprobeBin != "ffprobe" {
		t.Fatalf("expected default ffprobe, got %q", cfg.Analysis.FFprobeBin)
	}
}
