package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $WSCLEAN_CONFIG, ~/.config/wsclean, /etc/wsclean, ./config.yaml.
// Directories resolve to the config.yaml inside them.
func DiscoverConfigPath() (string, error) {
	var candidates []string
	if p := os.Getenv("WSCLEAN_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "wsclean"))
	}
	candidates = append(candidates, "/etc/wsclean", "./config.yaml")

	for _, c := range candidates {
		if path, ok := configFileAt(c); ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: $WSCLEAN_CONFIG, ~/.config/wsclean, /etc/wsclean, ./config.yaml)")
}

func configFileAt(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return path, true
	}
	inner := filepath.Join(path, "config.yaml")
	if fileExists(inner) {
		return inner, true
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
