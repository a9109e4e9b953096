package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/ui"
)

type ConfigCmd struct {
	Init     ConfigInitCmd     `cmd:"" help:"Write a commented config template"`
	Path     ConfigPathCmd     `cmd:"" aliases:"where" help:"Print config file path"`
	Show     ConfigShowCmd     `cmd:"" aliases:"list,ls" help:"Print the effective config"`
	Validate ConfigValidateCmd `cmd:"" aliases:"check" help:"Check the config and sheet layout"`
	Set      ConfigSetCmd      `cmd:"" help:"Set a top-level config value"`
	Keys     ConfigKeysCmd     `cmd:"" aliases:"list-keys" help:"List the keys config set accepts"`
}

type ConfigInitCmd struct {
	Force bool `name:"force" help:"Overwrite an existing config file"`
}

func (c *ConfigInitCmd) Run(ctx context.Context, flags *RootFlags) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := dryRunExit(ctx, flags, "config.init", map[string]any{"path": path, "force": c.Force}); err != nil {
		return err
	}
	if _, err := config.EnsureDir(); err != nil {
		return err
	}
	if err := config.Init(path, c.Force); err != nil {
		return &ExitError{Code: exitCodeConfig, Err: err}
	}
	if outfmt.IsJSON(ctx) {
		payload := outfmt.PathPayload(path)
		payload["written"] = true
		return outfmt.WriteJSON(ctx, os.Stdout, payload)
	}
	u := ui.FromContext(ctx)
	u.Out().Printf("written\t%s", path)
	u.Err().Println("Edit spreadsheet_id and the layout, then run: sheetcal config validate")
	return nil
}

type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(ctx context.Context) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, outfmt.PathPayload(path))
	}
	fmt.Fprintln(os.Stdout, path)
	return nil
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(ctx context.Context) error {
	cfg, err := readConfigLoose()
	if err != nil {
		return err
	}
	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{"config": cfg})
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

type ConfigValidateCmd struct{}

func (c *ConfigValidateCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	compiled, err := cfg.Layout.Compile()
	if err != nil {
		return err
	}
	path, _ := config.ConfigPath()
	if outfmt.IsJSON(ctx) {
		payload := outfmt.PathPayload(path)
		payload["valid"] = true
		payload["backend"] = cfg.Calendar.Backend
		payload["first_data_row"] = compiled.FirstDataRow
		return outfmt.WriteJSON(ctx, os.Stdout, payload)
	}
	u := ui.FromContext(ctx)
	u.Out().Success("valid\t" + path)
	u.Out().Printf("backend\t%s", cfg.Calendar.Backend)
	u.Out().Printf("first_data_row\t%d", compiled.FirstDataRow)
	return nil
}

// configSetters covers the scalar keys; the layout is edited in the file.
var configSetters = map[string]func(*config.File, string){
	"account":              func(f *config.File, v string) { f.Account = v },
	"client":               func(f *config.File, v string) { f.Client = v },
	"spreadsheet_id":       func(f *config.File, v string) { f.SpreadsheetID = v },
	"timezone":             func(f *config.File, v string) { f.Timezone = v },
	"calendar.backend":     func(f *config.File, v string) { f.Calendar.Backend = strings.ToLower(v) },
	"calendar.id":          func(f *config.File, v string) { f.Calendar.ID = v },
	"calendar.path":        func(f *config.File, v string) { f.Calendar.Path = v },
	"watch.schedule":       func(f *config.File, v string) { f.Watch.Schedule = v },
	"service_account_file": func(f *config.File, v string) { f.ServiceAccountFile = v },
	"keyring_backend":      func(f *config.File, v string) { f.KeyringBackend = strings.ToLower(v) },
}

func configKeys() []string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type ConfigKeysCmd struct{}

func (c *ConfigKeysCmd) Run(ctx context.Context) error {
	keys := configKeys()
	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, outfmt.KeysPayload(keys))
	}
	records := make([][]string, 0, len(keys))
	for _, k := range keys {
		records = append(records, []string{k})
	}
	return outfmt.WriteTSV(os.Stdout, records)
}

type ConfigSetCmd struct {
	Key   string `arg:"" help:"Config key (account, spreadsheet_id, timezone, calendar.backend, ...)"`
	Value string `arg:"" help:"Value to set; empty string clears it"`
}

func (c *ConfigSetCmd) Run(ctx context.Context, flags *RootFlags) error {
	key := strings.ToLower(strings.TrimSpace(c.Key))
	set, ok := configSetters[key]
	if !ok {
		return usagef("unknown config key %q (expected one of: %s)", c.Key, strings.Join(configKeys(), ", "))
	}
	cfg, err := readConfigLoose()
	if err != nil {
		return err
	}
	value := strings.TrimSpace(c.Value)
	set(&cfg, value)
	if key == "timezone" {
		if _, err := cfg.Location(); err != nil {
			return newUsageError(err)
		}
	}

	if err := dryRunExit(ctx, flags, "config.set", outfmt.KeyValuePayload(key, value)); err != nil {
		return err
	}
	if err := config.WriteConfig(cfg); err != nil {
		return err
	}
	if outfmt.IsJSON(ctx) {
		payload := outfmt.KeyValuePayload(key, value)
		payload["saved"] = true
		return outfmt.WriteJSON(ctx, os.Stdout, payload)
	}
	fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, value)
	return nil
}
