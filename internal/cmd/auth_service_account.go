package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/ui"
)

var errNotServiceAccount = errors.New("invalid service account JSON: expected type=service_account")

type AuthServiceAccountCmd struct {
	Set    AuthServiceAccountSetCmd    `cmd:"" name:"set" help:"Store a service account key used to impersonate an account"`
	Unset  AuthServiceAccountUnsetCmd  `cmd:"" name:"unset" help:"Remove a stored service account key"`
	Status AuthServiceAccountStatusCmd `cmd:"" name:"status" help:"Show stored service account key status"`
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	ClientID    string `json:"client_id"`
}

func parseServiceAccountJSON(data []byte) (serviceAccountKey, error) {
	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return serviceAccountKey{}, fmt.Errorf("invalid service account JSON: %w", err)
	}
	if key.Type != "service_account" {
		return serviceAccountKey{}, errNotServiceAccount
	}
	key.ClientEmail = strings.TrimSpace(key.ClientEmail)
	key.ClientID = strings.TrimSpace(key.ClientID)
	return key, nil
}

func (k serviceAccountKey) print(u *ui.UI) {
	if k.ClientEmail != "" {
		u.Out().Printf("client_email\t%s", k.ClientEmail)
	}
	if k.ClientID != "" {
		u.Out().Printf("client_id\t%s", k.ClientID)
	}
}

type AuthServiceAccountSetCmd struct {
	Email string `arg:"" name:"email" help:"Workspace account to impersonate"`
	Key   string `name:"key" required:"" help:"Path to the service account JSON key"`
}

func (c *AuthServiceAccountSetCmd) Run(ctx context.Context, flags *RootFlags) error {
	u := ui.FromContext(ctx)

	email := strings.TrimSpace(c.Email)
	if email == "" {
		return usage("empty email")
	}
	keyPath := strings.TrimSpace(c.Key)
	if keyPath == "" {
		return usage("empty key path")
	}
	keyPath, err := config.ExpandPath(keyPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(keyPath) //nolint:gosec // user-provided path
	if err != nil {
		return fmt.Errorf("read service account key: %w", err)
	}
	key, err := parseServiceAccountJSON(data)
	if err != nil {
		return newUsageError(err)
	}

	destPath, err := config.ServiceAccountPath(email)
	if err != nil {
		return err
	}
	if err := dryRunExit(ctx, flags, "auth.service_account.set", map[string]any{
		"email":        email,
		"key_path":     keyPath,
		"dest_path":    destPath,
		"client_email": key.ClientEmail,
	}); err != nil {
		return err
	}

	if _, err := config.EnsureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return fmt.Errorf("write service account: %w", err)
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"stored":       true,
			"email":        email,
			"path":         destPath,
			"client_email": key.ClientEmail,
			"client_id":    key.ClientID,
		})
	}
	u.Out().Printf("email\t%s", email)
	u.Out().Printf("path\t%s", destPath)
	key.print(u)
	u.Err().Println("Service account stored. Sync as it with: sheetcal --account " + email + " upload")
	return nil
}

type AuthServiceAccountUnsetCmd struct {
	Email string `arg:"" name:"email" help:"Impersonated account"`
}

func (c *AuthServiceAccountUnsetCmd) Run(ctx context.Context, flags *RootFlags) error {
	u := ui.FromContext(ctx)

	email := strings.TrimSpace(c.Email)
	if email == "" {
		return usage("empty email")
	}
	path, err := config.ServiceAccountPath(email)
	if err != nil {
		return err
	}
	if err := dryRunExit(ctx, flags, "auth.service_account.unset", map[string]any{"email": email, "path": path}); err != nil {
		return err
	}
	if err := confirmDestructive(ctx, flags, fmt.Sprintf("remove stored service account for %s", email)); err != nil {
		return err
	}

	deleted := true
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("remove service account: %w", err)
		}
		deleted = false
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"deleted": deleted,
			"email":   email,
			"path":    path,
		})
	}
	u.Out().Printf("deleted\t%t", deleted)
	u.Out().Printf("email\t%s", email)
	u.Out().Printf("path\t%s", path)
	return nil
}

type AuthServiceAccountStatusCmd struct {
	Email string `arg:"" name:"email" help:"Impersonated account"`
}

func (c *AuthServiceAccountStatusCmd) Run(ctx context.Context) error {
	u := ui.FromContext(ctx)

	email := strings.TrimSpace(c.Email)
	if email == "" {
		return usage("empty email")
	}
	path, err := config.ServiceAccountPath(email)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // stored in user config dir
	if os.IsNotExist(err) {
		if outfmt.IsJSON(ctx) {
			return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
				"email":  email,
				"path":   path,
				"exists": false,
			})
		}
		u.Out().Printf("email\t%s", email)
		u.Out().Printf("path\t%s", path)
		u.Out().Printf("exists\tfalse")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read service account: %w", err)
	}
	key, err := parseServiceAccountJSON(data)
	if err != nil {
		return err
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"email":        email,
			"path":         path,
			"exists":       true,
			"client_email": key.ClientEmail,
			"client_id":    key.ClientID,
		})
	}
	u.Out().Printf("email\t%s", email)
	u.Out().Printf("path\t%s", path)
	u.Out().Printf("exists\ttrue")
	key.print(u)
	return nil
}
