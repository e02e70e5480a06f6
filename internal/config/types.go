package config

import "time"

// Config represents the complete wsclean configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	API     APIConfig     `yaml:"api,omitempty"`
	Cleanup CleanupConfig `yaml:"cleanup"`
	Fleet   FleetConfig   `yaml:"fleet,omitempty"`
	// Mounts maps a node name to the local directory its filesystem is
	// reachable under. The controller is keyed "controller".
	Mounts map[string]string `yaml:"mounts,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	RunLogRetention time.Duration `yaml:"run_log_retention"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// FleetConfig names the inventory file `wsclean fleet import` reads by
// default. It is pinned by `wsclean config lock`.
type FleetConfig struct {
	File string `yaml:"file,omitempty"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
	// MaxConcurrentRuns bounds cleanup runs served at once; extra requests
	// are rejected with 429.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the single admin bearer token. Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// CleanupConfig is the cleanup engine section. Pointer fields distinguish
// "unset" from an explicit false or zero.
type CleanupConfig struct {
	NodeSelection    string         `yaml:"node_selection"`
	SkipRoaming      *bool          `yaml:"skip_roaming,omitempty"`
	Parallel         *bool          `yaml:"parallel,omitempty"`
	SkipNodePatterns []string       `yaml:"skip_node_patterns,omitempty"`
	DisabledNodes    []string       `yaml:"disabled_nodes,omitempty"`
	Timeout          *time.Duration `yaml:"timeout,omitempty"`
	PoolSize         int            `yaml:"pool_size,omitempty"`
}

// Defaults returns a Config with the defaults of a fresh installation.
func Defaults() *Config {
	skipRoaming := true
	parallel := true
	timeout := 15 * time.Minute
	return &Config{
		Service: ServiceConfig{
			Name:            "wsclean",
			LogLevel:        "info",
			LogFormat:       "json",
			RunLogRetention: 30 * 24 * time.Hour,
		},
		State: StateConfig{
			Path: "./data/wsclean.db",
		},
		API: APIConfig{
			Enabled:           false,
			Listen:            "127.0.0.1:8080",
			MaxConcurrentRuns: 4,
		},
		Cleanup: CleanupConfig{
			NodeSelection: "label_only",
			SkipRoaming:   &skipRoaming,
			Parallel:      &parallel,
			Timeout:       &timeout,
			PoolSize:      8,
		},
		Mounts: make(map[string]string),
	}
}
