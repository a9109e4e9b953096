package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steipete/sheetcal/internal/config"
)

func newConfigEnv(t *testing.T, name string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv(config.EnvConfig, path)
	t.Setenv("SHEETCAL_AUTO_JSON", "")
	t.Cleanup(func() { config.SetPath("") })
	return path
}

func TestConfigInitWritesTemplate(t *testing.T) {
	path := newConfigEnv(t, "config.yaml")

	if _, _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != config.TemplateYAML {
		t.Fatalf("expected the YAML template, got:\n%s", body)
	}

	_, _, err = execute(t, "config", "init")
	if ExitCode(err) != exitCodeConfig {
		t.Fatalf("second init should refuse, got %v", err)
	}
	if _, _, err := execute(t, "config", "init", "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestConfigPathFlagOverridesEnv(t *testing.T) {
	newConfigEnv(t, "config.json")
	other := filepath.Join(t.TempDir(), "other.json")

	out, _, err := execute(t, "--config", other, "config", "path")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if strings.TrimSpace(out) != other {
		t.Fatalf("unexpected path: %q", out)
	}
}

func TestConfigSetAndShow(t *testing.T) {
	path := newConfigEnv(t, "config.json")

	for _, args := range [][]string{
		{"config", "set", "spreadsheet_id", "abc123"},
		{"config", "set", "timezone", "Europe/Berlin"},
		{"config", "set", "calendar.backend", "SQLite"},
	} {
		if _, _, err := execute(t, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	cfg, err := config.ReadConfigFrom(path)
	if err != nil {
		t.Fatalf("ReadConfigFrom: %v", err)
	}
	if cfg.SpreadsheetID != "abc123" || cfg.Timezone != "Europe/Berlin" || cfg.Calendar.Backend != config.BackendSQLite {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	out, _, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "spreadsheet_id: abc123") {
		t.Fatalf("expected YAML output, got %q", out)
	}
}

func TestConfigSetRejects(t *testing.T) {
	newConfigEnv(t, "config.json")

	if _, _, err := execute(t, "config", "set", "nope", "x"); ExitCode(err) != 2 {
		t.Fatalf("unknown key: expected usage error, got %v", err)
	}
	if _, _, err := execute(t, "config", "set", "timezone", "Mars/Olympus"); ExitCode(err) != 2 {
		t.Fatalf("bad timezone: expected usage error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	path := newConfigEnv(t, "config.json")

	if _, _, err := execute(t, "config", "validate"); ExitCode(err) != exitCodeConfig {
		t.Fatalf("empty config should be invalid, got %v", err)
	}
	if err := os.WriteFile(path, []byte(`{spreadsheet_id: "abc", calendar: {backend: "ics", path: "cal.ics"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, _, err := execute(t, "--plain", "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "backend\tics") || !strings.Contains(out, "first_data_row\t6") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConfigKeys(t *testing.T) {
	newConfigEnv(t, "config.yaml")

	out, _, err := execute(t, "--json", "config", "keys")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	var p struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(p.Keys) != len(configSetters) || p.Keys[0] != "account" {
		t.Fatalf("unexpected keys: %v", p.Keys)
	}

	out, _, err = execute(t, "--plain", "config", "list-keys")
	if err != nil {
		t.Fatalf("list-keys: %v", err)
	}
	if !strings.Contains(out, "calendar.backend\n") {
		t.Fatalf("unexpected plain output: %q", out)
	}
}
