package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ManifestName is the integrity manifest kept next to the config file. It pins
// the config and every fleet file wsclean imports into its inventory.
const ManifestName = ".checksums"

const manifestVersion = 1

var (
	// ErrNotLocked is returned for a file missing from an existing manifest.
	ErrNotLocked = errors.New("not listed in " + ManifestName)
	// ErrTampered is returned when a file no longer matches its locked digest.
	ErrTampered = errors.New("does not match its locked digest")
)

// Manifest maps paths relative to the config directory to BLAKE3 digests.
type Manifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Files       map[string]string `yaml:"files"`
}

// LockedFile is one manifest entry written by Lock.
type LockedFile struct {
	Name   string
	Path   string
	Digest string
}

// LockReport describes what Lock hashed and where it wrote the manifest.
type LockReport struct {
	ManifestPath string
	Written      bool
	Files        []LockedFile
}

// Digest returns the hex BLAKE3 digest of a file.
func Digest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// manifestKey names path relative to dir with forward slashes. Files outside
// dir keep their ../ prefix.
func manifestKey(dir, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Lock digests files and, unless dryRun, replaces the manifest in dir.
// Relative file paths are taken from dir. Every file must exist.
func Lock(dir string, files []string, dryRun bool) (*LockReport, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	m := Manifest{
		Version:     manifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Files:       make(map[string]string, len(files)),
	}
	report := &LockReport{ManifestPath: filepath.Join(dir, ManifestName)}

	for _, f := range files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		key, err := manifestKey(dir, path)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", f, err)
		}
		if _, dup := m.Files[key]; dup {
			continue
		}
		digest, err := Digest(path)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", f, err)
		}
		m.Files[key] = digest
		report.Files = append(report.Files, LockedFile{Name: key, Path: path, Digest: digest})
	}
	sort.Slice(report.Files, func(i, j int) bool { return report.Files[i].Name < report.Files[j].Name })

	if dryRun {
		return report, nil
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ManifestName, err)
	}
	if err := os.WriteFile(report.ManifestPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", ManifestName, err)
	}
	report.Written = true
	return report, nil
}

// ReadManifest loads the manifest in dir. ok is false when there is none.
func ReadManifest(dir string) (m *Manifest, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", ManifestName, err)
	}
	m = &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	if m.Version != manifestVersion {
		return nil, false, fmt.Errorf("unsupported %s version: %d", ManifestName, m.Version)
	}
	return m, true, nil
}

// Verify checks one file against its locked digest.
func (m *Manifest) Verify(dir, path string) error {
	key, err := manifestKey(dir, path)
	if err != nil {
		return err
	}
	want, ok := m.Files[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotLocked)
	}
	got, err := Digest(path)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if got != want {
		return fmt.Errorf("%s %w (locked %.12s, now %.12s)", key, ErrTampered, want, got)
	}
	return nil
}

// VerifyLocked checks path against the manifest next to the config file at
// configPath. Nothing is enforced until `wsclean config lock` has written one.
func VerifyLocked(configPath, path string) error {
	dir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return err
	}
	m, ok, err := ReadManifest(dir)
	if err != nil || !ok {
		return err
	}
	return m.Verify(dir, path)
}

// LockedFiles lists what `wsclean config lock` pins for cfg: the config file
// itself and the configured fleet file.
func (c *Config) LockedFiles() []string {
	files := []string{c.SourcePath}
	if c.Fleet.File != "" {
		files = append(files, c.Fleet.File)
	}
	return files
}
