package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/googleauth"
	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/secrets"
	"github.com/steipete/sheetcal/internal/ui"
)

var (
	openSecretsStore     = secrets.OpenDefault
	authorizeGoogle      = googleauth.Authorize
	checkRefreshToken    = googleauth.CheckRefreshToken
	ensureKeychainAccess = secrets.EnsureKeychainAccess
	fetchAuthorizedEmail = googleauth.EmailForRefreshToken
	manualAuthURL        = googleauth.ManualAuthURL
)

const strFile = "file"

func ensureKeychainAccessIfNeeded() error {
	backendInfo, err := secrets.ResolveKeyringBackendInfo()
	if err != nil {
		return fmt.Errorf("resolve keyring backend: %w", err)
	}
	if backendInfo.Value == strFile {
		return nil
	}
	return ensureKeychainAccess()
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// readConfigLoose reads the config without validating it; auth commands
// work before a spreadsheet is configured.
func readConfigLoose() (config.File, error) {
	cfg, err := config.ReadConfig()
	if err != nil {
		return config.File{}, &ExitError{Code: exitCodeConfig, Err: err}
	}
	return cfg, nil
}

// accountFor resolves the account: --account, then the config file, then
// the keyring's default account for the client.
func accountFor(flags *RootFlags, cfg config.File, client string) string {
	if a := resolveAccount(flags, cfg); a != "" {
		return a
	}
	store, err := openSecretsStore()
	if err != nil {
		return ""
	}
	email, err := store.GetDefaultAccount(client)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(email)
}

type AuthCmd struct {
	Credentials AuthCredentialsCmd    `cmd:"" name:"credentials" help:"Store OAuth client credentials"`
	Login       AuthLoginCmd          `cmd:"" name:"login" aliases:"add" help:"Authorize and store a refresh token"`
	Logout      AuthLogoutCmd         `cmd:"" name:"logout" aliases:"remove,rm" help:"Remove a stored refresh token"`
	Status      AuthStatusCmd         `cmd:"" name:"status" help:"Show auth configuration and keyring backend"`
	List        AuthListCmd           `cmd:"" name:"list" aliases:"ls" help:"List stored accounts"`
	Keyring     AuthKeyringCmd        `cmd:"" name:"keyring" help:"Configure keyring backend"`
	ServiceAcct AuthServiceAccountCmd `cmd:"" name:"service-account" help:"Configure a service account key (Workspace domain-wide delegation)"`
}

type AuthCredentialsCmd struct {
	Path string `arg:"" name:"credentials" help:"Path to credentials.json or '-' for stdin"`
}

func (c *AuthCredentialsCmd) Run(ctx context.Context, flags *RootFlags) error {
	u := ui.FromContext(ctx)
	cfg, err := readConfigLoose()
	if err != nil {
		return err
	}
	client := resolveClient(flags, cfg)

	b, err := readInput("credentials", c.Path, fileOnly)
	if err != nil {
		return err
	}

	creds, err := config.ParseGoogleOAuthClientJSON(b)
	if err != nil {
		return newUsageError(err)
	}
	outPath, err := config.ClientCredentialsPathFor(client)
	if err != nil {
		return err
	}
	if err := dryRunExit(ctx, flags, "auth.credentials", map[string]any{"client": client, "path": outPath}); err != nil {
		return err
	}
	if err := config.WriteClientCredentialsFor(client, creds); err != nil {
		return err
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"saved":  true,
			"path":   outPath,
			"client": client,
		})
	}
	u.Out().Printf("path\t%s", outPath)
	u.Out().Printf("client\t%s", client)
	return nil
}

type AuthLoginCmd struct {
	Email        string        `arg:"" name:"email" help:"Email"`
	Manual       bool          `name:"manual" help:"Browserless auth flow (paste redirect URL)"`
	Remote       bool          `name:"remote" help:"Remote/server-friendly manual flow (print URL, then exchange redirect)"`
	Step         int           `name:"step" help:"Remote auth step: 1=print URL, 2=exchange redirect"`
	AuthURL      string        `name:"auth-url" help:"Redirect URL from browser (required for --remote --step 2)"`
	Timeout      time.Duration `name:"timeout" help:"Authorization timeout (manual flows default to 5m)"`
	ForceConsent bool          `name:"force-consent" help:"Force consent screen to obtain a refresh token"`
	ServicesCSV  string        `name:"services" help:"Services to authorize: all or comma-separated ${auth_services}" default:"all"`
	SetDefault   bool          `name:"default" help:"Make this the default account for the client" default:"true" negatable:""`
}

func parseAuthServices(servicesCSV string) ([]googleauth.Service, error) {
	trimmed := strings.ToLower(strings.TrimSpace(servicesCSV))
	if trimmed == "" || trimmed == "all" || trimmed == "user" {
		return googleauth.UserServices(), nil
	}

	seen := make(map[googleauth.Service]struct{})
	var out []googleauth.Service
	for _, p := range splitCommaList(servicesCSV) {
		svc, err := googleauth.ParseService(p)
		if err != nil {
			return nil, newUsageError(err)
		}
		if _, ok := seen[svc]; ok {
			continue
		}
		seen[svc] = struct{}{}
		out = append(out, svc)
	}
	return out, nil
}

func (c *AuthLoginCmd) Run(ctx context.Context, flags *RootFlags) error {
	u := ui.FromContext(ctx)

	cfg, err := readConfigLoose()
	if err != nil {
		return err
	}
	client := resolveClient(flags, cfg)

	services, err := parseAuthServices(c.ServicesCSV)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return usage("no services selected")
	}
	scopes, err := googleauth.ScopesFor(services)
	if err != nil {
		return err
	}

	authURL := strings.TrimSpace(c.AuthURL)
	if c.Step != 0 && c.Step != 1 && c.Step != 2 {
		return usage("step must be 1 or 2")
	}
	if c.Step != 0 && !c.Remote {
		return usage("--step requires --remote")
	}
	manual := c.Manual || c.Remote || authURL != ""

	if c.Remote {
		step := c.Step
		if step == 0 {
			step = 1
			if authURL != "" {
				step = 2
			}
		}
		switch step {
		case 1:
			if authURL != "" {
				return usage("remote step 1 does not accept --auth-url")
			}
			result, err := manualAuthURL(ctx, googleauth.AuthorizeOptions{
				Scopes:       scopes,
				Manual:       true,
				ForceConsent: c.ForceConsent,
				Client:       client,
			})
			if err != nil {
				return err
			}
			if outfmt.IsJSON(ctx) {
				return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
					"auth_url":     result.URL,
					"state_reused": result.StateReused,
				})
			}
			u.Out().Printf("auth_url\t%s", result.URL)
			u.Out().Printf("state_reused\t%t", result.StateReused)
			u.Err().Println("Run again with --remote --step 2 --auth-url <redirect-url>")
			return nil
		case 2:
			if authURL == "" {
				return usage("remote step 2 requires --auth-url")
			}
		}
	}

	timeout := c.Timeout
	if timeout == 0 && manual {
		timeout = 5 * time.Minute
	}

	if err := dryRunExit(ctx, flags, "auth.login", map[string]any{
		"email":         strings.TrimSpace(c.Email),
		"client":        client,
		"services":      services,
		"scopes":        scopes,
		"manual":        c.Manual,
		"remote":        c.Remote,
		"force_consent": c.ForceConsent,
	}); err != nil {
		return err
	}

	if err := ensureKeychainAccessIfNeeded(); err != nil {
		return fmt.Errorf("keychain access: %w", err)
	}

	refreshToken, err := authorizeGoogle(ctx, googleauth.AuthorizeOptions{
		Scopes:       scopes,
		Manual:       manual,
		ForceConsent: c.ForceConsent,
		Timeout:      timeout,
		Client:       client,
		RedirectURL:  authURL,
		RequireState: c.Remote,
	})
	if err != nil {
		return err
	}

	authorizedEmail, err := fetchAuthorizedEmail(ctx, client, refreshToken, scopes, 15*time.Second)
	if err != nil {
		return fmt.Errorf("fetch authorized email: %w", err)
	}
	if normalizeEmail(authorizedEmail) != normalizeEmail(c.Email) {
		return fmt.Errorf("authorized as %s, expected %s", authorizedEmail, c.Email)
	}

	store, err := openSecretsStore()
	if err != nil {
		return err
	}
	serviceNames := make([]string, 0, len(services))
	for _, svc := range services {
		serviceNames = append(serviceNames, string(svc))
	}
	sort.Strings(serviceNames)

	if err := store.SetToken(client, authorizedEmail, secrets.Token{
		Client:       client,
		Email:        authorizedEmail,
		Services:     serviceNames,
		Scopes:       scopes,
		RefreshToken: refreshToken,
	}); err != nil {
		return err
	}
	if c.SetDefault {
		if err := store.SetDefaultAccount(client, authorizedEmail); err != nil {
			return err
		}
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"stored":   true,
			"email":    authorizedEmail,
			"services": serviceNames,
			"client":   client,
			"default":  c.SetDefault,
		})
	}
	u.Out().Printf("email\t%s", authorizedEmail)
	u.Out().Printf("services\t%s", strings.Join(serviceNames, ","))
	u.Out().Printf("client\t%s", client)
	return nil
}

type AuthLogoutCmd struct {
	Email string `arg:"" name:"email" help:"Email"`
}

func (c *AuthLogoutCmd) Run(ctx context.Context, flags *RootFlags) error {
	u := ui.FromContext(ctx)
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return usage("empty email")
	}
	cfg, err := readConfigLoose()
	if err != nil {
		return err
	}
	client := resolveClient(flags, cfg)

	if err := dryRunExit(ctx, flags, "auth.logout", map[string]any{"email": email, "client": client}); err != nil {
		return err
	}
	if err := confirmDestructive(ctx, flags, fmt.Sprintf("remove stored token for %s", email)); err != nil {
		return err
	}

	store, err := openSecretsStore()
	if err != nil {
		return err
	}
	if err := store.DeleteToken(client, email); err != nil {
		return err
	}
	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"deleted": true,
			"email":   email,
			"client":  client,
		})
	}
	u.Out().Printf("deleted\ttrue")
	u.Out().Printf("email\t%s", email)
	u.Out().Printf("client\t%s", client)
	return nil
}

type AuthStatusCmd struct{}

func (c *AuthStatusCmd) Run(ctx context.Context, flags *RootFlags) error {
	u := ui.FromContext(ctx)
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	configExists, err := config.ConfigExists()
	if err != nil {
		return err
	}
	cfg, err := readConfigLoose()
	if err != nil {
		return err
	}
	backendInfo, err := secrets.ResolveKeyringBackendInfo()
	if err != nil {
		return err
	}

	client := resolveClient(flags, cfg)
	account := accountFor(flags, cfg, client)
	credentialsPath, _ := config.ClientCredentialsPathFor(client)
	credentialsExists := fileExists(credentialsPath)

	serviceAccountPath := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountPath == "" && account != "" {
		if p, err := config.ServiceAccountPath(account); err == nil && fileExists(p) {
			serviceAccountPath = p
		}
	}
	authPreferred := "oauth"
	if serviceAccountPath != "" {
		authPreferred = "service_account"
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"config": map[string]any{
				"path":   configPath,
				"exists": configExists,
			},
			"keyring": map[string]any{
				"backend": backendInfo.Value,
				"source":  backendInfo.Source,
			},
			"account": map[string]any{
				"email":                account,
				"client":               client,
				"credentials_path":     credentialsPath,
				"credentials_exists":   credentialsExists,
				"auth_preferred":       authPreferred,
				"service_account_path": serviceAccountPath,
			},
		})
	}
	u.Out().Printf("config_path\t%s", configPath)
	u.Out().Printf("config_exists\t%t", configExists)
	u.Out().Printf("keyring_backend\t%s", backendInfo.Value)
	u.Out().Printf("keyring_backend_source\t%s", backendInfo.Source)
	u.Out().Printf("account\t%s", account)
	u.Out().Printf("client\t%s", client)
	u.Out().Printf("credentials_path\t%s", credentialsPath)
	u.Out().Printf("credentials_exists\t%t", credentialsExists)
	u.Out().Printf("auth_preferred\t%s", authPreferred)
	if serviceAccountPath != "" {
		u.Out().Printf("service_account_path\t%s", serviceAccountPath)
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

type AuthListCmd struct {
	Check   bool          `name:"check" help:"Verify refresh tokens by exchanging for an access token"`
	Timeout time.Duration `name:"timeout" help:"Per-token check timeout" default:"15s"`
}

func (c *AuthListCmd) Run(ctx context.Context, _ *RootFlags) error {
	u := ui.FromContext(ctx)
	store, err := openSecretsStore()
	if err != nil {
		return err
	}
	tokens, err := store.ListTokens()
	if err != nil {
		return err
	}

	type item struct {
		Email     string   `json:"email"`
		Client    string   `json:"client"`
		Services  []string `json:"services,omitempty"`
		CreatedAt string   `json:"created_at,omitempty"`
		Valid     *bool    `json:"valid,omitempty"`
		Error     string   `json:"error,omitempty"`
	}
	items := make([]item, 0, len(tokens))
	for _, tok := range tokens {
		if strings.TrimSpace(tok.Email) == "" {
			continue
		}
		it := item{Email: tok.Email, Client: tok.Client, Services: tok.Services}
		if !tok.CreatedAt.IsZero() {
			it.CreatedAt = tok.CreatedAt.UTC().Format(time.RFC3339)
		}
		if c.Check {
			err := checkRefreshToken(ctx, tok.Client, tok.RefreshToken, tok.Scopes, c.Timeout)
			valid := err == nil
			it.Valid = &valid
			if err != nil {
				it.Error = err.Error()
			}
		}
		items = append(items, it)
	}

	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{"accounts": items})
	}
	if len(items) == 0 {
		u.Err().Println("No tokens stored")
		return nil
	}
	for _, it := range items {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", it.Email, it.Client, strings.Join(it.Services, ","), it.CreatedAt)
		if it.Valid != nil {
			line += fmt.Sprintf("\t%t\t%s", *it.Valid, it.Error)
		}
		u.Out().Println(line)
	}
	return nil
}

func splitCommaList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\t' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
