package config

import (
	"crypto/tls"
	"testing"
	"time"
)

func validAccount() AccountConfig {
	return AccountConfig{
		Name:      "home",
		Hostname:  "mail.example.com",
		Port:      110,
		Username:  "alice",
		Password:  "hunter2",
		Transport: TransportPlain,
		Auth:      AuthUserPass,
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Global.LogLevel != "info" {
		t.Errorf("expected log_level 'info', got %q", cfg.Global.LogLevel)
	}

	if cfg.Global.MboxDir != "./mail" {
		t.Errorf("expected mbox_dir './mail', got %q", cfg.Global.MboxDir)
	}

	if cfg.Global.TLS.MinVersion != "1.2" {
		t.Errorf("expected TLS min_version '1.2', got %q", cfg.Global.TLS.MinVersion)
	}

	if cfg.Global.Timeouts.Connection != "30s" {
		t.Errorf("expected connection timeout '30s', got %q", cfg.Global.Timeouts.Connection)
	}

	if cfg.Global.WarnSizeKB != 1024 {
		t.Errorf("expected warn_size_kb 1024, got %d", cfg.Global.WarnSizeKB)
	}

	if len(cfg.Accounts) != 0 {
		t.Errorf("expected no accounts in default config, got %d", len(cfg.Accounts))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid single account",
			modify:  func(c *Config) { c.Accounts = []AccountConfig{validAccount()} },
			wantErr: false,
		},
		{
			name:    "no accounts",
			modify:  func(c *Config) {},
			wantErr: true,
		},
		{
			name: "account missing name",
			modify: func(c *Config) {
				a := validAccount()
				a.Name = ""
				c.Accounts = []AccountConfig{a}
			},
			wantErr: true,
		},
		{
			name: "duplicate account names",
			modify: func(c *Config) {
				c.Accounts = []AccountConfig{validAccount(), validAccount()}
			},
			wantErr: true,
		},
		{
			name: "account missing hostname",
			modify: func(c *Config) {
				a := validAccount()
				a.Hostname = ""
				c.Accounts = []AccountConfig{a}
			},
			wantErr: true,
		},
		{
			name: "account with zero port",
			modify: func(c *Config) {
				a := validAccount()
				a.Port = 0
				c.Accounts = []AccountConfig{a}
			},
			wantErr: true,
		},
		{
			name: "account missing username",
			modify: func(c *Config) {
				a := validAccount()
				a.Username = ""
				c.Accounts = []AccountConfig{a}
			},
			wantErr: true,
		},
		{
			name: "account invalid transport",
			modify: func(c *Config) {
				a := validAccount()
				a.Transport = "carrier-pigeon"
				c.Accounts = []AccountConfig{a}
			},
			wantErr: true,
		},
		{
			name: "account invalid auth",
			modify: func(c *Config) {
				a := validAccount()
				a.Auth = "oauth2"
				c.Accounts = []AccountConfig{a}
			},
			wantErr: true,
		},
		{
			name: "account invalid preselection",
			modify: func(c *Config) {
				a := validAccount()
				a.Preselection = "sometimes"
				c.Accounts = []AccountConfig{a}
			},
			wantErr: true,
		},
		{
			name: "invalid global TLS min_version",
			modify: func(c *Config) {
				c.Accounts = []AccountConfig{validAccount()}
				c.Global.TLS.MinVersion = "1.4"
			},
			wantErr: true,
		},
		{
			name: "invalid global connection timeout",
			modify: func(c *Config) {
				c.Accounts = []AccountConfig{validAccount()}
				c.Global.Timeouts.Connection = "invalid"
			},
			wantErr: true,
		},
		{
			name: "metrics enabled without address",
			modify: func(c *Config) {
				c.Accounts = []AccountConfig{validAccount()}
				c.Global.Metrics.Enabled = true
				c.Global.Metrics.Address = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMinTLSVersion(t *testing.T) {
	tests := []struct {
		version  string
		expected uint16
	}{
		{"1.0", tls.VersionTLS10},
		{"1.1", tls.VersionTLS11},
		{"1.2", tls.VersionTLS12},
		{"1.3", tls.VersionTLS13},
		{"", tls.VersionTLS12},
		{"invalid", tls.VersionTLS12},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			cfg := TLSConfig{MinVersion: tt.version}
			if got := cfg.MinTLSVersion(); got != tt.expected {
				t.Errorf("MinTLSVersion() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConnectionTimeout(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"10m", 10 * time.Minute},
		{"1h", 1 * time.Hour},
		{"30s", 30 * time.Second},
		{"", 30 * time.Second},
		{"invalid", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := TimeoutsConfig{Connection: tt.value}
			if got := cfg.ConnectionTimeout(); got != tt.expected {
				t.Errorf("ConnectionTimeout() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCommandTimeout(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"30s", 30 * time.Second},
		{"", 1 * time.Minute},
		{"invalid", 1 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := TimeoutsConfig{Command: tt.value}
			if got := cfg.CommandTimeout(); got != tt.expected {
				t.Errorf("CommandTimeout() = %v, want %v", got, tt.expected)
			}
		})
	}
}
