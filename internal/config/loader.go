package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath string
	LogLevel   string
	MboxDir    string
	Account    string
	Once       bool
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./accounts.toml", "Path to accounts configuration file")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.MboxDir, "mbox-dir", "", "Directory to write exported mbox files into")
	flag.StringVar(&f.Account, "account", "", "Poll only the named account, ignoring the others")
	flag.BoolVar(&f.Once, "once", false, "Poll every active account once, then exit")

	flag.Parse()
	return f
}

// Load parses a TOML accounts file and returns the Config.
// If the file does not exist, returns the default configuration with no
// accounts; Validate then fails, since no flag adds an account (the
// -account flag only filters the configured ones).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	cfg = mergeGlobalConfig(cfg, fileConfig.Global)
	if len(fileConfig.Accounts) > 0 {
		cfg.Accounts = fileConfig.Accounts
	}

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.LogLevel != "" {
		cfg.Global.LogLevel = f.LogLevel
	}

	if f.MboxDir != "" {
		cfg.Global.MboxDir = f.MboxDir
	}

	if f.Account != "" {
		filtered := make([]AccountConfig, 0, 1)
		for _, a := range cfg.Accounts {
			if a.Name == f.Account {
				filtered = append(filtered, a)
			}
		}
		cfg.Accounts = filtered
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}

// mergeGlobalConfig merges non-zero values from src into dst's global
// section.
func mergeGlobalConfig(dst Config, src GlobalConfig) Config {
	if src.LogLevel != "" {
		dst.Global.LogLevel = src.LogLevel
	}

	if src.MboxDir != "" {
		dst.Global.MboxDir = src.MboxDir
	}

	if src.UIDLStore != "" {
		dst.Global.UIDLStore = src.UIDLStore
	}

	if src.TLS.MinVersion != "" {
		dst.Global.TLS.MinVersion = src.TLS.MinVersion
	}

	if src.TLS.InsecureSkipVerify {
		dst.Global.TLS.InsecureSkipVerify = src.TLS.InsecureSkipVerify
	}

	if src.Timeouts.Connection != "" {
		dst.Global.Timeouts.Connection = src.Timeouts.Connection
	}

	if src.Timeouts.Command != "" {
		dst.Global.Timeouts.Command = src.Timeouts.Command
	}

	if src.Metrics.Enabled {
		dst.Global.Metrics.Enabled = src.Metrics.Enabled
	}

	if src.Metrics.Address != "" {
		dst.Global.Metrics.Address = src.Metrics.Address
	}

	if src.Metrics.Path != "" {
		dst.Global.Metrics.Path = src.Metrics.Path
	}

	if src.WarnSizeKB > 0 {
		dst.Global.WarnSizeKB = src.WarnSizeKB
	}

	if src.UIDLMaxAge > 0 {
		dst.Global.UIDLMaxAge = src.UIDLMaxAge
	}

	return dst
}
