package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/accounts.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}

	expected := Default()
	if cfg.Global.LogLevel != expected.Global.LogLevel {
		t.Errorf("expected log_level %q, got %q", expected.Global.LogLevel, cfg.Global.LogLevel)
	}
	if len(cfg.Accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(cfg.Accounts))
	}
}

func TestLoadValidTOML(t *testing.T) {
	content := `
[global]
log_level = "debug"
mbox_dir = "/var/mail/export"
uidl_store = "/var/lib/popclient/uidl.db"
warn_size_kb = 2048
uidl_max_age_sessions = 10

[global.tls]
min_version = "1.3"

[global.timeouts]
connection = "15s"
command = "45s"

[[account]]
name = "home"
hostname = "mail.example.com"
port = 110
username = "alice"
password = "hunter2"
transport = "plain"
auth = "userpass"
active = true

[[account]]
name = "work"
hostname = "mail.work.example.com"
port = 995
username = "alice.work"
transport = "tls"
auth = "apop"
active = true
purge = true
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Global.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", cfg.Global.LogLevel)
	}

	if cfg.Global.MboxDir != "/var/mail/export" {
		t.Errorf("mbox_dir = %q, want '/var/mail/export'", cfg.Global.MboxDir)
	}

	if cfg.Global.TLS.MinVersion != "1.3" {
		t.Errorf("tls.min_version = %q, want '1.3'", cfg.Global.TLS.MinVersion)
	}

	if cfg.Global.Timeouts.Connection != "15s" {
		t.Errorf("timeouts.connection = %q, want '15s'", cfg.Global.Timeouts.Connection)
	}

	if cfg.Global.WarnSizeKB != 2048 {
		t.Errorf("warn_size_kb = %d, want 2048", cfg.Global.WarnSizeKB)
	}

	if len(cfg.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(cfg.Accounts))
	}

	if cfg.Accounts[0].Name != "home" || cfg.Accounts[0].Transport != TransportPlain {
		t.Errorf("account[0] = %+v, want name='home' transport='plain'", cfg.Accounts[0])
	}

	if cfg.Accounts[1].Name != "work" || cfg.Accounts[1].Auth != AuthAPOP || !cfg.Accounts[1].Purge {
		t.Errorf("account[1] = %+v, want name='work' auth='apop' purge=true", cfg.Accounts[1])
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	content := `
[global
log_level = "broken
`

	path := createTempConfig(t, content)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoadPartialConfig(t *testing.T) {
	content := `
[global]
log_level = "warn"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Global.LogLevel != "warn" {
		t.Errorf("log_level = %q, want 'warn'", cfg.Global.LogLevel)
	}

	defaults := Default()
	if cfg.Global.MboxDir != defaults.Global.MboxDir {
		t.Errorf("mbox_dir = %q, want default %q", cfg.Global.MboxDir, defaults.Global.MboxDir)
	}
	if cfg.Global.WarnSizeKB != defaults.Global.WarnSizeKB {
		t.Errorf("warn_size_kb = %d, want default %d", cfg.Global.WarnSizeKB, defaults.Global.WarnSizeKB)
	}
}

func TestLoadMetricsConfig(t *testing.T) {
	content := `
[global.metrics]
enabled = true
address = ":9200"
path = "/custom-metrics"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Global.Metrics.Enabled {
		t.Errorf("metrics.enabled = %v, want true", cfg.Global.Metrics.Enabled)
	}
	if cfg.Global.Metrics.Address != ":9200" {
		t.Errorf("metrics.address = %q, want ':9200'", cfg.Global.Metrics.Address)
	}
	if cfg.Global.Metrics.Path != "/custom-metrics" {
		t.Errorf("metrics.path = %q, want '/custom-metrics'", cfg.Global.Metrics.Path)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{
		{Name: "home"},
		{Name: "work"},
	}

	flags := &Flags{
		LogLevel: "debug",
		MboxDir:  "/flag/mail",
	}

	result := ApplyFlags(cfg, flags)

	if result.Global.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", result.Global.LogLevel)
	}
	if result.Global.MboxDir != "/flag/mail" {
		t.Errorf("mbox_dir = %q, want '/flag/mail'", result.Global.MboxDir)
	}
	if len(result.Accounts) != 2 {
		t.Errorf("expected accounts untouched, got %d", len(result.Accounts))
	}
}

func TestApplyFlagsEmptyValuesDoNotOverride(t *testing.T) {
	cfg := Default()
	cfg.Global.LogLevel = "warn"
	cfg.Global.MboxDir = "/original/mail"

	flags := &Flags{}

	result := ApplyFlags(cfg, flags)

	if result.Global.LogLevel != "warn" {
		t.Errorf("log_level = %q, want 'warn' (should not be overridden)", result.Global.LogLevel)
	}
	if result.Global.MboxDir != "/original/mail" {
		t.Errorf("mbox_dir = %q, want '/original/mail' (should not be overridden)", result.Global.MboxDir)
	}
}

func TestApplyFlagsAccountFiltersToOne(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{
		{Name: "home"},
		{Name: "work"},
	}

	flags := &Flags{Account: "work"}

	result := ApplyFlags(cfg, flags)

	if len(result.Accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(result.Accounts))
	}
	if result.Accounts[0].Name != "work" {
		t.Errorf("account = %q, want 'work'", result.Accounts[0].Name)
	}
}

func TestApplyFlagsAccountFiltersToNoneWhenNoMatch(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{{Name: "home"}}

	flags := &Flags{Account: "missing"}

	result := ApplyFlags(cfg, flags)

	if len(result.Accounts) != 0 {
		t.Errorf("expected 0 accounts, got %d", len(result.Accounts))
	}
}

func TestFlagPriorityOverConfig(t *testing.T) {
	content := `
[global]
log_level = "info"
mbox_dir = "/config/mail"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	flags := &Flags{
		LogLevel: "debug",
	}

	result := ApplyFlags(cfg, flags)

	if result.Global.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug' (flag should override)", result.Global.LogLevel)
	}
	if result.Global.MboxDir != "/config/mail" {
		t.Errorf("mbox_dir = %q, want '/config/mail' (config value should remain)", result.Global.MboxDir)
	}
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	return path
}
