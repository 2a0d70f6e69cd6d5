// prefs.go holds the per-user CLI preferences file: default control-socket
// path and default verbosity, read from ~/.config/fgc-pm/prefs.toml.
//
// This is a new ambient convenience the original Python never had — it
// always took an explicit --config-file flag — and it doesn't change any
// daemon behavior. Shaped directly on the teacher's internal/config/
// config.go: Load/Save/Get/Set by dot-separated key, backed by
// github.com/pelletier/go-toml/v2.
package pmconfig

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/juju/errors"
)

// Prefs is the ~/.config/fgc-pm/prefs.toml file.
type Prefs struct {
	SocketPath string `toml:"socket_path,omitempty"`
	Verbose    bool   `toml:"verbose,omitempty"`
}

var prefsDirOverride string

// SetPrefsDir overrides the preferences directory, for the --config-dir
// flag or tests. Mirrors the teacher's SetConfigDir/DH_HOME override.
func SetPrefsDir(dir string) {
	prefsDirOverride = dir
}

// PrefsDir returns the preferences directory: --config-dir override, then
// $FGC_PM_HOME, then ~/.config/fgc-pm.
func PrefsDir() string {
	if prefsDirOverride != "" {
		return prefsDirOverride
	}
	if v := os.Getenv("FGC_PM_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".fgc-pm")
	}
	return filepath.Join(home, ".config", "fgc-pm")
}

// PrefsPath returns the full path to prefs.toml.
func PrefsPath() string {
	return filepath.Join(PrefsDir(), "prefs.toml")
}

// LoadPrefs reads prefs.toml, returning zero-value Prefs if it does not
// exist yet.
func LoadPrefs() (*Prefs, error) {
	p := &Prefs{}
	data, err := os.ReadFile(PrefsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, errors.Annotate(err, "reading CLI preferences")
	}
	if err := toml.Unmarshal(data, p); err != nil {
		return nil, errors.Annotate(err, "parsing prefs.toml")
	}
	return p, nil
}

// SavePrefs writes p back to prefs.toml, creating its directory if needed.
func SavePrefs(p *Prefs) error {
	if err := os.MkdirAll(PrefsDir(), 0o755); err != nil {
		return errors.Annotate(err, "creating preferences directory")
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return errors.Annotate(err, "marshaling prefs.toml")
	}
	return os.WriteFile(PrefsPath(), data, 0o644)
}

var validPrefsKeys = map[string]bool{
	"socket_path": true,
	"verbose":     true,
}

// GetPref retrieves a single preference by dotted key.
func GetPref(key string) (string, error) {
	if !validPrefsKeys[key] {
		return "", errors.Errorf("unknown preference key: %s", key)
	}
	p, err := LoadPrefs()
	if err != nil {
		return "", err
	}
	switch key {
	case "socket_path":
		return p.SocketPath, nil
	case "verbose":
		if p.Verbose {
			return "true", nil
		}
		return "false", nil
	default:
		return "", errors.Errorf("unknown preference key: %s", key)
	}
}

// SetPref sets a single preference by dotted key and persists it.
func SetPref(key, value string) error {
	if !validPrefsKeys[key] {
		return errors.Errorf("unknown preference key: %s", key)
	}
	p, err := LoadPrefs()
	if err != nil {
		return err
	}
	switch key {
	case "socket_path":
		p.SocketPath = value
	case "verbose":
		p.Verbose = value == "true"
	}
	return SavePrefs(p)
}
