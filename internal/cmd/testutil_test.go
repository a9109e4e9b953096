package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/googleauth"
	"github.com/steipete/sheetcal/internal/secrets"
	"github.com/steipete/sheetcal/internal/sheetsync"
	"github.com/steipete/sheetcal/internal/store/memory"
)

// Default layout columns.
const (
	colID = iota + 1
	colTitle
	colDate
	colTime
	colDuration
	colUpload
	colStatus
)

var errNoKeyring = errors.New("keyring disabled in tests")

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = orig
	b, _ := io.ReadAll(r)
	_ = r.Close()
	return string(b)
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w

	fn()

	_ = w.Close()
	os.Stderr = orig
	b, _ := io.ReadAll(r)
	_ = r.Close()
	return string(b)
}

func withStdin(t *testing.T, input string, fn func()) {
	t.Helper()

	orig := os.Stdin
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdin = r

	_, _ = io.WriteString(w, input)
	_ = w.Close()

	fn()

	_ = r.Close()
	os.Stdin = orig
}

// execute runs the CLI and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var err error
	var stderr string
	stdout := captureStdout(t, func() {
		stderr = captureStderr(t, func() {
			err = Execute(args)
		})
	})
	return stdout, stderr, err
}

func runKong(t *testing.T, cmd any, args []string, ctx context.Context, flags *RootFlags) (err error) {
	t.Helper()

	parser, err := kong.New(
		cmd,
		kong.Vars(kong.Vars{
			"auth_services": googleauth.UserServiceCSV(),
		}),
		kong.Writers(io.Discard, io.Discard),
		kong.Exit(func(code int) { panic(exitPanic{code: code}) }),
	)
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
		return err
	}

	if ctx != nil {
		kctx.BindTo(ctx, (*context.Context)(nil))
	}
	if flags == nil {
		flags = &RootFlags{}
	}
	kctx.Bind(flags)

	return kctx.Run()
}

// syncEnv is a config file backed by an .ics calendar and an in-memory
// sheet that every session in the test shares.
type syncEnv struct {
	sheet      *memory.Sheet
	configPath string
	icsPath    string
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()

	dir := t.TempDir()
	env := &syncEnv{
		sheet:      memory.NewSheet(),
		configPath: filepath.Join(dir, "config.json"),
		icsPath:    filepath.Join(dir, "calendar.ics"),
	}
	cfg := map[string]any{
		"spreadsheet_id": "sheet-1",
		"timezone":       "UTC",
		"calendar": map[string]any{
			"backend": config.BackendICS,
			"path":    env.icsPath,
		},
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(env.configPath, b, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(config.EnvConfig, env.configPath)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv(secrets.EnvKeyringBackend, "file")
	t.Setenv("SHEETCAL_AUTO_JSON", "")

	origSheet := openSheetStore
	origSecrets := openSecretsStore
	origNow := nowFn
	t.Cleanup(func() {
		openSheetStore = origSheet
		openSecretsStore = origSecrets
		nowFn = origNow
		config.SetPath("")
	})

	openSheetStore = func(context.Context, config.File, string) (sheetsync.SheetStore, error) {
		return env.sheet, nil
	}
	openSecretsStore = func() (secrets.Store, error) { return nil, errNoKeyring }
	nowFn = func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }
	return env
}

func (e *syncEnv) setRow(row int, id, title string, date, clock, hours any, upload bool) {
	e.sheet.Set(row, colID, id)
	e.sheet.Set(row, colTitle, title)
	e.sheet.Set(row, colDate, date)
	e.sheet.Set(row, colTime, clock)
	e.sheet.Set(row, colDuration, hours)
	e.sheet.Set(row, colUpload, upload)
}

// fakeSecrets is an in-memory secrets.Store.
type fakeSecrets struct {
	mu       sync.Mutex
	tokens   map[string]secrets.Token
	defaults map[string]string
}

func newFakeSecrets() *fakeSecrets {
	return &fakeSecrets{tokens: map[string]secrets.Token{}, defaults: map[string]string{}}
}

func (s *fakeSecrets) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.tokens))
	for k := range s.tokens {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *fakeSecrets) SetToken(client, email string, tok secrets.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[client+":"+email] = tok
	return nil
}

func (s *fakeSecrets) GetToken(client, email string) (secrets.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[client+":"+email]
	if !ok {
		return secrets.Token{}, errNoKeyring
	}
	return tok, nil
}

func (s *fakeSecrets) DeleteToken(client, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, client+":"+email)
	return nil
}

func (s *fakeSecrets) ListTokens() ([]secrets.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]secrets.Token, 0, len(s.tokens))
	for _, tok := range s.tokens {
		out = append(out, tok)
	}
	return out, nil
}

func (s *fakeSecrets) GetDefaultAccount(client string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.defaults[client]
	if !ok {
		return "", errNoKeyring
	}
	return email, nil
}

func (s *fakeSecrets) SetDefaultAccount(client, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[client] = email
	return nil
}
