package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/errfmt"
	"github.com/steipete/sheetcal/internal/googleauth"
	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/secrets"
	"github.com/steipete/sheetcal/internal/ui"
)

const (
	colorNever = "never"
	strTrue    = "true"
)

type RootFlags struct {
	Config          string `help:"Config file (.json/.json5 or .yaml)" placeholder:"PATH"`
	Color           string `help:"Color output: auto|always|never" default:"${color}"`
	Account         string `help:"Google account for the Sheets and Calendar APIs" aliases:"acct" short:"a" default:"${account}"`
	Client          string `help:"OAuth client name (selects stored credentials + token bucket)" default:"${client}"`
	EnableCommands  string `help:"Comma-separated list of enabled top-level commands (restricts CLI)" default:"${enabled_commands}"`
	DisableCommands string `help:"Comma-separated list of disabled commands (auth.logout blocks one subcommand)" default:"${disabled_commands}"`
	JSON            bool   `help:"Output JSON to stdout (best for scripting)" default:"${json}" aliases:"machine" short:"j"`
	Plain           bool   `help:"Output stable, parseable text to stdout (TSV; no colors)" default:"${plain}" aliases:"tsv" short:"p"`
	ResultsOnly     bool   `name:"results-only" help:"In JSON mode, emit only the primary result"`
	Select          string `name:"select" aliases:"pick" help:"In JSON mode, select comma-separated fields (supports dot paths)"`
	DryRun          bool   `help:"Do not touch the sheet or calendar; print intended actions and exit successfully" aliases:"noop,preview" short:"n"`
	Force           bool   `help:"Skip confirmations for destructive commands" aliases:"yes,assume-yes" short:"y"`
	NoInput         bool   `help:"Never prompt; fail instead (useful for CI)" aliases:"non-interactive"`
	Verbose         bool   `help:"Enable verbose logging" short:"v"`
}

type CLI struct {
	RootFlags `embed:""`

	Version kong.VersionFlag `help:"Print version and exit"`

	Download DownloadCmd `cmd:"" name:"download" aliases:"dl,pull" help:"Fill the sheet with the calendar's events for the period"`
	Upload   UploadCmd   `cmd:"" name:"upload" aliases:"up,push" help:"Reconcile sheet rows into calendar events"`
	Edit     EditCmd     `cmd:"" name:"edit" help:"Handle one sheet edit notification (what a trigger would send)"`
	Watch    WatchCmd    `cmd:"" name:"watch" help:"Poll the sheet's checkboxes on a schedule"`

	Login  AuthLoginCmd  `cmd:"" name:"login" help:"Authorize and store a refresh token (alias for 'auth login')"`
	Logout AuthLogoutCmd `cmd:"" name:"logout" help:"Remove a stored refresh token (alias for 'auth logout')"`
	Status AuthStatusCmd `cmd:"" name:"status" aliases:"st" help:"Show auth/config status (alias for 'auth status')"`

	Auth       AuthCmd      `cmd:"" help:"Auth and credentials"`
	Config     ConfigCmd    `cmd:"" aliases:"cfg" help:"Manage configuration"`
	ExitCodes  ExitCodesCmd `cmd:"" name:"exit-codes" aliases:"exitcodes" help:"Print stable exit codes"`
	VersionCmd VersionCmd   `cmd:"" name:"version" help:"Print version"`
}

type exitPanic struct{ code int }

func Execute(args []string) (err error) {
	parser, cli, err := newParser(helpDescription())
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if ep, ok := r.(exitPanic); ok {
				if ep.code == 0 {
					err = nil
					return
				}
				err = &ExitError{Code: ep.code, Err: errors.New("exited")}
				return
			}
			panic(r)
		}
	}()

	kctx, err := parser.Parse(args)
	if err != nil {
		parsedErr := wrapParseError(err)
		_, _ = fmt.Fprintln(os.Stderr, errfmt.Format(parsedErr))
		return parsedErr
	}

	if err = enforceCommandPolicy(kctx.Command(), cli.EnableCommands, cli.DisableCommands); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errfmt.Format(err))
		return err
	}

	config.SetPath(cli.RootFlags.Config)

	logLevel := slog.LevelWarn
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Default to JSON when stdout is piped. Runs after parsing so --plain wins.
	if envBool("SHEETCAL_AUTO_JSON") && !cli.JSON && !cli.Plain && !term.IsTerminal(int(os.Stdout.Fd())) {
		cli.JSON = true
	}

	mode, err := outfmt.FromFlags(cli.JSON, cli.Plain)
	if err != nil {
		return newUsageError(err)
	}

	ctx := context.Background()
	ctx = outfmt.WithMode(ctx, mode)
	ctx = outfmt.WithJSONTransform(ctx, outfmt.JSONTransform{
		ResultsOnly: cli.ResultsOnly,
		Select:      splitCommaList(cli.Select),
	})

	uiColor := cli.Color
	if outfmt.IsJSON(ctx) || outfmt.IsPlain(ctx) {
		uiColor = colorNever
	}

	u, err := ui.New(ui.Options{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Color:  uiColor,
	})
	if err != nil {
		return newUsageError(err)
	}
	ctx = ui.WithUI(ctx, u)

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(&cli.RootFlags)

	err = kctx.Run()
	if err == nil {
		return nil
	}
	// Dry runs exit early with success.
	if ExitCode(err) == 0 {
		return nil
	}
	err = stableExitCode(err)

	if msg := strings.TrimSpace(errfmt.Format(err)); msg != "" {
		u.Err().Error(msg)
	}
	return err
}

func wrapParseError(err error) error {
	if err == nil {
		return nil
	}
	var parseErr *kong.ParseError
	if errors.As(err, &parseErr) {
		return &ExitError{Code: 2, Err: parseErr}
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", strTrue, "yes", "y", "on":
		return true
	default:
		return false
	}
}

func boolString(v bool) string {
	return strconv.FormatBool(v)
}

func newParser(description string) (*kong.Kong, *CLI, error) {
	envMode := outfmt.FromEnv()
	vars := kong.Vars{
		"account":           envOr("SHEETCAL_ACCOUNT", ""),
		"auth_services":     googleauth.UserServiceCSV(),
		"color":             envOr("SHEETCAL_COLOR", "auto"),
		"client":            envOr("SHEETCAL_CLIENT", ""),
		"enabled_commands":  envOr("SHEETCAL_ENABLE_COMMANDS", ""),
		"disabled_commands": envOr("SHEETCAL_DISABLE_COMMANDS", ""),
		"json":              boolString(envMode.JSON),
		"plain":             boolString(envMode.Plain),
		"version":           VersionString(),
	}

	cli := &CLI{}
	parser, err := kong.New(
		cli,
		kong.Name("sheetcal"),
		kong.Description(description),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars(vars),
		kong.Writers(os.Stdout, os.Stderr),
		kong.Exit(func(code int) { panic(exitPanic{code: code}) }),
	)
	if err != nil {
		return nil, nil, err
	}
	return parser, cli, nil
}

func baseDescription() string {
	return "Keep a Google Sheet of appointments and a calendar in step"
}

func helpDescription() string {
	desc := baseDescription()

	configPath, err := config.ConfigPath()
	configLine := "unknown"
	if err != nil {
		configLine = fmt.Sprintf("error: %v", err)
	} else if configPath != "" {
		configLine = configPath
	}

	backendInfo, err := secrets.ResolveKeyringBackendInfo()
	var backendLine string
	if err != nil {
		backendLine = fmt.Sprintf("error: %v", err)
	} else if backendInfo.Value != "" {
		backendLine = fmt.Sprintf("%s (source: %s)", backendInfo.Value, backendInfo.Source)
	}

	return fmt.Sprintf("%s\n\nConfig:\n  file: %s\n  keyring backend: %s", desc, configLine, backendLine)
}
