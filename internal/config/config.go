// Package config provides configuration management for the POP3 retrieval
// client: the list of configured accounts and the global download policy.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"
)

// TransportMode selects how a session's initial connection is secured (§2).
type TransportMode string

const (
	// TransportPlain connects on the plaintext POP3 port with no TLS.
	TransportPlain TransportMode = "plain"
	// TransportSTLS connects in plaintext, then issues STLS (RFC 2595)
	// before authenticating.
	TransportSTLS TransportMode = "stls"
	// TransportImplicitTLS dials straight into a TLS handshake (port 995).
	TransportImplicitTLS TransportMode = "tls"
)

// AuthMode selects the authentication exchange a session performs (§4.D).
type AuthMode string

const (
	// AuthUserPass is plain USER/PASS authentication.
	AuthUserPass AuthMode = "userpass"
	// AuthAPOP is APOP challenge/response authentication.
	AuthAPOP AuthMode = "apop"
)

// PreselectionMode mirrors pop3.PreselectionMode in string form for TOML.
type PreselectionMode string

const (
	PreselectionNever  PreselectionMode = "never"
	PreselectionLarge  PreselectionMode = "large"
	PreselectionAlways PreselectionMode = "always"
)

// FileConfig is the top-level shape of the accounts file on disk.
type FileConfig struct {
	Global   GlobalConfig    `toml:"global"`
	Accounts []AccountConfig `toml:"account"`
}

// GlobalConfig holds settings shared across every configured account.
type GlobalConfig struct {
	LogLevel   string         `toml:"log_level"`
	MboxDir    string         `toml:"mbox_dir"`
	UIDLStore  string         `toml:"uidl_store"`
	TLS        TLSConfig      `toml:"tls"`
	Timeouts   TimeoutsConfig `toml:"timeouts"`
	Metrics    MetricsConfig  `toml:"metrics"`
	WarnSizeKB int64          `toml:"warn_size_kb"`
	UIDLMaxAge int            `toml:"uidl_max_age_sessions"`
}

// AccountConfig describes one mail drop to poll (§2 Account).
type AccountConfig struct {
	Name          string           `toml:"name"`
	Hostname      string           `toml:"hostname"`
	Port          int              `toml:"port"`
	Username      string           `toml:"username"`
	Password      string           `toml:"password"`
	Transport     TransportMode    `toml:"transport"`
	Auth          AuthMode         `toml:"auth"`
	Active        bool             `toml:"active"`
	Purge         bool             `toml:"purge"`
	DownloadLarge bool             `toml:"download_large"`
	Preselection  PreselectionMode `toml:"preselection"`
	AvoidDupes    bool             `toml:"avoid_duplicates"`
}

// TLSConfig holds TLS verification settings shared by every account.
type TLSConfig struct {
	MinVersion         string `toml:"min_version"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// TimeoutsConfig holds the session timeout settings. Command is handed to
// the transport, where it bounds the TLS handshake; line and block reads
// keep polling until data arrives or the session is aborted, with no
// overall time limit. Connection is validated but not applied when
// dialing: a connect attempt is bounded only by the caller's context.
type TimeoutsConfig struct {
	Connection string `toml:"connection"`
	Command    string `toml:"command"`
}

// MetricsConfig holds configuration for the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Config is the validated, in-memory configuration the rest of the client
// consumes, obtained from FileConfig via Load and ApplyFlags.
type Config struct {
	Global   GlobalConfig
	Accounts []AccountConfig
}

// Default returns a Config with sensible default values and no accounts.
func Default() Config {
	return Config{
		Global: GlobalConfig{
			LogLevel:  "info",
			MboxDir:   "./mail",
			UIDLStore: "./uidl.db",
			TLS: TLSConfig{
				MinVersion: "1.2",
			},
			Timeouts: TimeoutsConfig{
				Connection: "30s",
				Command:    "1m",
			},
			Metrics: MetricsConfig{
				Enabled: false,
				Address: ":9101",
				Path:    "/metrics",
			},
			WarnSizeKB: 1024,
			UIDLMaxAge: 30,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Global.TLS.MinVersion != "" {
		if _, ok := minTLSVersions[c.Global.TLS.MinVersion]; !ok {
			return fmt.Errorf("invalid TLS min_version %q (valid: 1.0, 1.1, 1.2, 1.3)", c.Global.TLS.MinVersion)
		}
	}

	if c.Global.Timeouts.Connection != "" {
		if _, err := time.ParseDuration(c.Global.Timeouts.Connection); err != nil {
			return fmt.Errorf("invalid connection timeout: %w", err)
		}
	}

	if c.Global.Timeouts.Command != "" {
		if _, err := time.ParseDuration(c.Global.Timeouts.Command); err != nil {
			return fmt.Errorf("invalid command timeout: %w", err)
		}
	}

	if c.Global.Metrics.Enabled {
		if c.Global.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Global.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	if len(c.Accounts) == 0 {
		return errors.New("at least one account is required")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.Name == "" {
			return fmt.Errorf("account %d: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("account %d: duplicate account name %q", i, a.Name)
		}
		seen[a.Name] = true

		if a.Hostname == "" {
			return fmt.Errorf("account %q: hostname is required", a.Name)
		}
		if a.Port <= 0 {
			return fmt.Errorf("account %q: port must be positive", a.Name)
		}
		if a.Username == "" {
			return fmt.Errorf("account %q: username is required", a.Name)
		}
		if !isValidTransport(a.Transport) {
			return fmt.Errorf("account %q: invalid transport %q", a.Name, a.Transport)
		}
		if !isValidAuth(a.Auth) {
			return fmt.Errorf("account %q: invalid auth %q", a.Name, a.Auth)
		}
		if a.Preselection != "" && !isValidPreselection(a.Preselection) {
			return fmt.Errorf("account %q: invalid preselection %q", a.Name, a.Preselection)
		}
	}

	return nil
}

// MinTLSVersion returns the crypto/tls constant for the configured minimum
// TLS version. Returns tls.VersionTLS12 if not configured or invalid.
func (t *TLSConfig) MinTLSVersion() uint16 {
	if v, ok := minTLSVersions[t.MinVersion]; ok {
		return v
	}
	return tls.VersionTLS12
}

// ConnectionTimeout returns the connect timeout as a time.Duration. Returns
// 30 seconds if not configured or invalid.
func (t *TimeoutsConfig) ConnectionTimeout() time.Duration {
	if t.Connection == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(t.Connection)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CommandTimeout returns the configured command timeout as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (t *TimeoutsConfig) CommandTimeout() time.Duration {
	if t.Command == "" {
		return 1 * time.Minute
	}
	d, err := time.ParseDuration(t.Command)
	if err != nil {
		return 1 * time.Minute
	}
	return d
}

var minTLSVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

func isValidTransport(m TransportMode) bool {
	switch m {
	case TransportPlain, TransportSTLS, TransportImplicitTLS:
		return true
	default:
		return false
	}
}

func isValidAuth(a AuthMode) bool {
	switch a {
	case AuthUserPass, AuthAPOP:
		return true
	default:
		return false
	}
}

func isValidPreselection(p PreselectionMode) bool {
	switch p {
	case PreselectionNever, PreselectionLarge, PreselectionAlways:
		return true
	default:
		return false
	}
}
