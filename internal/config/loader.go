package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/wsclean/internal/cleanup"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, defaults and validates a configuration file. If a
// .checksums manifest sits next to the file, the file must match it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	if err := VerifyLocked(absPath, absPath); err != nil {
		return nil, fmt.Errorf("config verification failed: %w\n"+
			"If you edited this file intentionally, run: wsclean config lock --config %s", err, absPath)
	}

	cfg, err := Parse(absPath)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse reads a config file and applies defaults without validating it.
// Relative state and fleet paths are resolved against the file's directory.
func Parse(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	applyConfigDefaults(&cfg)
	cfg.SourcePath = absPath

	dir := filepath.Dir(absPath)
	if cfg.State.Path != "" && !filepath.IsAbs(cfg.State.Path) {
		cfg.State.Path = filepath.Join(dir, cfg.State.Path)
	}
	if cfg.Fleet.File != "" && !filepath.IsAbs(cfg.Fleet.File) {
		cfg.Fleet.File = filepath.Join(dir, cfg.Fleet.File)
	}
	return &cfg, nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.RunLogRetention == 0 {
		cfg.Service.RunLogRetention = defaults.Service.RunLogRetention
	}

	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}

	if !cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.API.MaxConcurrentRuns == 0 {
		cfg.API.MaxConcurrentRuns = defaults.API.MaxConcurrentRuns
	}

	if cfg.Cleanup.NodeSelection == "" {
		cfg.Cleanup.NodeSelection = defaults.Cleanup.NodeSelection
	}
	if cfg.Cleanup.SkipRoaming == nil {
		cfg.Cleanup.SkipRoaming = defaults.Cleanup.SkipRoaming
	}
	if cfg.Cleanup.Parallel == nil {
		cfg.Cleanup.Parallel = defaults.Cleanup.Parallel
	}
	if cfg.Cleanup.Timeout == nil {
		cfg.Cleanup.Timeout = defaults.Cleanup.Timeout
	}
	if cfg.Cleanup.PoolSize == 0 {
		cfg.Cleanup.PoolSize = defaults.Cleanup.PoolSize
	}

	if cfg.Mounts == nil {
		cfg.Mounts = make(map[string]string)
	}
	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate rejects configurations the service cannot start with. Softer
// problems are reported by the doctor package.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}
	if cfg.Service.RunLogRetention < 0 {
		return fmt.Errorf("service.run_log_retention must not be negative")
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if _, err := cleanup.ParseNodeSelection(cfg.Cleanup.NodeSelection); err != nil {
		return fmt.Errorf("cleanup.node_selection: %w", err)
	}
	if cfg.Cleanup.Timeout != nil && *cfg.Cleanup.Timeout < 0 {
		return fmt.Errorf("cleanup.timeout must not be negative")
	}
	if cfg.Cleanup.PoolSize < 0 {
		return fmt.Errorf("cleanup.pool_size must not be negative")
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when the API is enabled")
		}
		if cfg.API.MaxConcurrentRuns < 0 {
			return fmt.Errorf("api.max_concurrent_runs must not be negative")
		}
		if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
			matches := envVarPattern.FindStringSubmatch(cfg.API.Auth.APIKey)
			return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", matches[1])
		}
		for i, tok := range cfg.API.Auth.Tokens {
			if tok.Token == "" {
				return fmt.Errorf("api.auth.tokens[%d].token is required", i)
			}
			if envVarPattern.MatchString(tok.Token) {
				matches := envVarPattern.FindStringSubmatch(tok.Token)
				return fmt.Errorf("api.auth.tokens[%d].token: environment variable ${%s} is not set", i, matches[1])
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
			}
		}
	}

	for node, root := range cfg.Mounts {
		if root == "" {
			return fmt.Errorf("mounts.%s: path is required", node)
		}
	}
	return nil
}

// Settings converts the cleanup section into engine settings. Invalid skip
// patterns are compiled away here and surface through PatternFilter.Invalid.
func (c *Config) Settings() cleanup.Settings {
	s := cleanup.DefaultSettings()
	if sel, err := cleanup.ParseNodeSelection(c.Cleanup.NodeSelection); err == nil {
		s.Selection = sel
	}
	if c.Cleanup.SkipRoaming != nil {
		s.SkipRoaming = *c.Cleanup.SkipRoaming
	}
	if c.Cleanup.Parallel != nil {
		s.Parallel = *c.Cleanup.Parallel
	}
	if c.Cleanup.Timeout != nil {
		s.Timeout = *c.Cleanup.Timeout
	}
	s.Patterns = cleanup.CompilePatterns(c.Cleanup.SkipNodePatterns)
	s.DisabledNodes = append([]string(nil), c.Cleanup.DisabledNodes...)
	return s
}
