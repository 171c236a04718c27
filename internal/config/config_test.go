package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("", Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dir := filepath.Join(home, DefaultConfigDir)
	if cfg.ConfigDir != dir {
		t.Errorf("expected config dir %s, got %s", dir, cfg.ConfigDir)
	}
	if cfg.RulesPath != filepath.Join(dir, DefaultRulesFile) {
		t.Errorf("unexpected rules path %s", cfg.RulesPath)
	}
	if cfg.AuditLog != filepath.Join(dir, DefaultAuditFile) {
		t.Errorf("unexpected audit log %s", cfg.AuditLog)
	}
	if cfg.Timeout != DefaultTimeout || cfg.Shell != DefaultShell {
		t.Errorf("unexpected timeout/shell %v %s", cfg.Timeout, cfg.Shell)
	}
	if cfg.Serve.Listen != "0.0.0.0:2222" || cfg.Serve.MaxConns != 256 || !cfg.Serve.Watch {
		t.Errorf("unexpected serve defaults %+v", cfg.Serve)
	}
	if cfg.Serve.HostKeyPath != filepath.Join(dir, DefaultHostKey) {
		t.Errorf("unexpected host key path %s", cfg.Serve.HostKeyPath)
	}
}

func TestLoad_Precedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, DefaultConfigDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	file := strings.Join([]string{
		"rules: /etc/cmdmask/rules.yaml",
		"timeout: 2s",
		"log_level: debug",
		"serve:",
		"  listen: 127.0.0.1:2200",
		"  hostname: db01",
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(file), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CMDMASK_SERVE_HOSTNAME", "env-host")
	t.Setenv("CMDMASK_TIMEOUT", "3s")

	cfg, err := Load("", Overrides{LogLevel: "warn"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RulesPath != "/etc/cmdmask/rules.yaml" {
		t.Errorf("expected file value for rules, got %s", cfg.RulesPath)
	}
	if cfg.Serve.Listen != "127.0.0.1:2200" {
		t.Errorf("expected file value for listen, got %s", cfg.Serve.Listen)
	}
	if cfg.Serve.Hostname != "env-host" {
		t.Errorf("expected env to beat file, got %s", cfg.Serve.Hostname)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("expected env timeout, got %v", cfg.Timeout)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected flag override to win, got %s", cfg.LogLevel)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "mask.json")
	if err := os.WriteFile(path, []byte(`{"audit_log": "/tmp/a.jsonl"}`), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AuditLog != "/tmp/a.jsonl" {
		t.Errorf("expected audit log from file, got %s", cfg.AuditLog)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), Overrides{}); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := map[string]string{
		"CMDMASK_TIMEOUT":         "0s",
		"CMDMASK_SERVE_MAX_CONNS": "-1",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load("", Overrides{}); err == nil {
				t.Errorf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory, got %v", err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("expected mode 0700, got %o", info.Mode().Perm())
	}
}
