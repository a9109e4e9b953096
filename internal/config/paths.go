package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	AppName           = "sheetcal"
	DefaultClientName = "default"

	// EnvConfig overrides the config file location.
	EnvConfig = "SHEETCAL_CONFIG"
)

var (
	pathMu       sync.RWMutex
	pathOverride string
)

// SetPath makes every later ConfigPath call return path. An empty path
// restores the default lookup.
func SetPath(path string) {
	pathMu.Lock()
	defer pathMu.Unlock()
	pathOverride = strings.TrimSpace(path)
}

// Dir is the per-user config directory ($XDG_CONFIG_HOME/sheetcal).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// EnsureDir creates Dir when missing and returns it.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// ConfigPath resolves the config file: SetPath, then $SHEETCAL_CONFIG, then
// Dir/config.json.
func ConfigPath() (string, error) {
	pathMu.RLock()
	override := pathOverride
	pathMu.RUnlock()

	if override == "" {
		override = strings.TrimSpace(os.Getenv(EnvConfig))
	}
	if override != "" {
		return ExpandPath(override)
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func ConfigExists() (bool, error) {
	path, err := ConfigPath()
	if err != nil {
		return false, err
	}
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat config: %w", err)
	}
	return !st.IsDir(), nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// ClientCredentialsPathFor is credentials.json for the default client and
// credentials-<client>.json otherwise, next to the config file.
func ClientCredentialsPathFor(client string) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	name := "credentials.json"
	if c := normalizeClient(client); c != DefaultClientName {
		name = "credentials-" + c + ".json"
	}
	return filepath.Join(filepath.Dir(path), name), nil
}

func normalizeClient(client string) string {
	client = strings.ToLower(strings.TrimSpace(client))
	if client == "" {
		return DefaultClientName
	}
	return client
}

// ServiceAccountPath is where `auth service-account set` stores a key for
// email.
func ServiceAccountPath(email string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("service account path: empty email")
	}
	return filepath.Join(dir, "sa-"+email+".json"), nil
}
