package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/secrets"
	"github.com/steipete/sheetcal/internal/ui"
)

type AuthKeyringCmd struct {
	Backend  string `arg:"" optional:"" name:"backend" help:"Keyring backend: auto|keychain|secret-service|wincred|file"`
	Backend2 string `arg:"" optional:"" name:"backend2" help:"Backend when called as: sheetcal auth keyring set <backend>"`
}

func (c *AuthKeyringCmd) Run(ctx context.Context, flags *RootFlags) error {
	u := ui.FromContext(ctx)

	keyringPasswordEnv := secrets.EnvKeyringPassword

	backend := strings.ToLower(strings.TrimSpace(c.Backend))
	backend2 := strings.ToLower(strings.TrimSpace(c.Backend2))

	if backend == "set" {
		backend = backend2
		backend2 = ""
	}

	// No args: show current config.
	if backend == "" {
		path, _ := config.ConfigPath()
		info, err := secrets.ResolveKeyringBackendInfo()
		if err != nil {
			return err
		}

		if outfmt.IsJSON(ctx) {
			return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
				"keyring_backend": info.Value,
				"source":          info.Source,
				"path":            path,
			})
		}

		if u == nil {
			return nil
		}
		u.Out().Printf("path\t%s", path)
		u.Out().Printf("keyring_backend\t%s", info.Value)
		u.Out().Printf("source\t%s", info.Source)
		u.Err().Println("Hint: sheetcal auth keyring <auto|keychain|secret-service|wincred|file>")
		return nil
	}

	if backend2 != "" {
		return usagef("too many args: %q %q", c.Backend, c.Backend2)
	}

	if backend == "default" {
		backend = "auto"
	}

	allowed := map[string]struct{}{
		"auto":           {},
		"keychain":       {},
		"secret-service": {},
		"wincred":        {},
		strFile:          {},
	}
	if _, ok := allowed[backend]; !ok {
		return usagef("invalid backend: %q (expected auto, keychain, secret-service, wincred or file)", c.Backend)
	}

	path, _ := config.ConfigPath()
	if err := dryRunExit(ctx, flags, "auth.keyring.set", map[string]any{
		"path":            path,
		"keyring_backend": backend,
	}); err != nil {
		return err
	}

	cfg, err := readConfigLoose()
	if err != nil {
		return err
	}
	cfg.KeyringBackend = backend
	if err := config.WriteConfig(cfg); err != nil {
		return err
	}

	// The env var wins over the config file.
	if v := strings.TrimSpace(os.Getenv(secrets.EnvKeyringBackend)); v != "" &&
		u != nil &&
		!outfmt.IsJSON(ctx) &&
		!outfmt.IsPlain(ctx) {
		u.Err().Printf("NOTE: %s=%s overrides the config file", secrets.EnvKeyringBackend, v)
	}

	if backend == strFile &&
		u != nil &&
		!outfmt.IsJSON(ctx) &&
		!outfmt.IsPlain(ctx) {
		if v := strings.TrimSpace(os.Getenv(keyringPasswordEnv)); v != "" {
			u.Err().Printf("%s found in environment.", keyringPasswordEnv)
		} else if !stdinIsTTY() {
			u.Err().Printf("NOTE: file keyring backend in non-interactive context requires %s", keyringPasswordEnv)
		} else {
			u.Err().Printf("Hint: set %s for non-interactive use (CI/ssh)", keyringPasswordEnv)
		}
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"written":         true,
			"path":            path,
			"keyring_backend": backend,
		})
	}

	if u == nil {
		return nil
	}

	u.Out().Printf("written\ttrue")
	u.Out().Printf("path\t%s", path)
	u.Out().Printf("keyring_backend\t%s", backend)
	return nil
}
