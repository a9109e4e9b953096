package googleauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/input"
)

type AuthorizeOptions struct {
	Scopes       []string
	Manual       bool
	ForceConsent bool
	Timeout      time.Duration
	Client       string
	// RedirectURL is the address the browser landed on after consent. When
	// set, the manual flow exchanges it without prompting.
	RedirectURL string
	// RequireState rejects redirects whose state was not issued by
	// ManualAuthURL on this machine.
	RequireState bool
}

type ManualAuthURLResult struct {
	URL         string
	StateReused bool
}

const callbackPath = "/oauth2/callback"

var (
	readClientCredentials = config.ReadClientCredentialsFor
	openBrowserFn         = openBrowser
	oauthEndpoint         = google.Endpoint
	randomStateFn         = randomState
	manualRedirectURIFn   = randomLoopbackRedirectURI
	promptLineFn          = input.PromptLine
)

var (
	errAuthorization       = errors.New("authorization error")
	errInvalidRedirectURL  = errors.New("invalid redirect URL")
	errMissingCode         = errors.New("missing code")
	errMissingState        = errors.New("missing state in redirect URL")
	errMissingScopes       = errors.New("missing scopes")
	errNoRefreshToken      = errors.New("no refresh token received; try again with --force-consent")
	errManualStateMissing  = errors.New("manual auth state missing; run remote step 1 again")
	errManualStateMismatch = errors.New("manual auth state mismatch; run remote step 1 again")
	errStateMismatch       = errors.New("state mismatch")
)

// Authorize runs the consent flow and returns the refresh token. The default
// flow listens on a loopback port and opens the browser; Manual prints the
// URL and exchanges the pasted redirect.
func Authorize(ctx context.Context, opts AuthorizeOptions) (string, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if len(opts.Scopes) == 0 {
		return "", errMissingScopes
	}

	creds, err := readClientCredentials(opts.Client)
	if err != nil {
		return "", err
	}
	cfg := oauthConfig(creds, opts.Scopes)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if !opts.Manual {
		return authorizeServer(ctx, opts, cfg)
	}

	redirect := strings.TrimSpace(opts.RedirectURL)
	wantState := ""
	if redirect == "" {
		st, _, err := manualSetup(ctx, opts)
		if err != nil {
			return "", err
		}
		cfg.RedirectURL = st.RedirectURI

		fmt.Fprintln(os.Stderr, "Visit this URL to authorize:")
		fmt.Fprintln(os.Stderr, cfg.AuthCodeURL(st.State, authURLParams(opts.ForceConsent)...))
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "The browser will end on a loopback URL that does not load.")
		fmt.Fprintln(os.Stderr, "Copy that URL from the address bar and paste it here.")

		line, err := promptLineFn(ctx, "Redirect URL: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("authorization canceled: %w", context.Canceled)
			}
			return "", fmt.Errorf("read redirect url: %w", err)
		}
		redirect = strings.TrimSpace(line)
		wantState = st.State
	}

	return exchangeRedirect(ctx, opts, cfg, redirect, wantState)
}

// ManualAuthURL is step one of the remote flow: it records a state and
// returns the consent URL. Repeated calls for the same request reuse the
// pending state.
func ManualAuthURL(ctx context.Context, opts AuthorizeOptions) (ManualAuthURLResult, error) {
	if len(opts.Scopes) == 0 {
		return ManualAuthURLResult{}, errMissingScopes
	}
	creds, err := readClientCredentials(opts.Client)
	if err != nil {
		return ManualAuthURLResult{}, err
	}

	st, reused, err := manualSetup(ctx, opts)
	if err != nil {
		return ManualAuthURLResult{}, err
	}
	cfg := oauthConfig(creds, opts.Scopes)
	cfg.RedirectURL = st.RedirectURI

	return ManualAuthURLResult{
		URL:         cfg.AuthCodeURL(st.State, authURLParams(opts.ForceConsent)...),
		StateReused: reused,
	}, nil
}

func oauthConfig(creds config.ClientCredentials, scopes []string) oauth2.Config {
	return oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauthEndpoint,
		Scopes:       scopes,
	}
}

func manualSetup(ctx context.Context, opts AuthorizeOptions) (manualState, bool, error) {
	if st, ok, err := latestManualState(opts.Client, opts.Scopes, opts.ForceConsent); err != nil {
		return manualState{}, false, err
	} else if ok {
		return st, true, nil
	}

	redirectURI, err := manualRedirectURIFn(ctx)
	if err != nil {
		return manualState{}, false, err
	}
	state, err := randomStateFn()
	if err != nil {
		return manualState{}, false, err
	}
	st := manualState{
		State:        state,
		Client:       opts.Client,
		Scopes:       opts.Scopes,
		ForceConsent: opts.ForceConsent,
		RedirectURI:  redirectURI,
	}
	if err := saveManualState(st); err != nil {
		return manualState{}, false, err
	}
	return st, false, nil
}

// exchangeRedirect validates the pasted redirect against the stored state
// and trades its code for tokens. wantState, when set, must match exactly.
func exchangeRedirect(ctx context.Context, opts AuthorizeOptions, cfg oauth2.Config, rawURL string, wantState string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("parse redirect url: %w", errInvalidRedirectURL)
	}

	q := parsed.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: %s", errAuthorization, e)
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" {
		return "", errMissingCode
	}
	if state == "" && (opts.RequireState || wantState != "") {
		return "", errMissingState
	}
	if wantState != "" && state != wantState {
		return "", errStateMismatch
	}

	cfg.RedirectURL = redirectURIOf(parsed)
	if state != "" {
		st, ok, err := loadManualStateFor(state)
		if err != nil {
			return "", err
		}
		switch {
		case !ok && opts.RequireState:
			return "", errManualStateMissing
		case ok && (!st.matches(opts.Client, opts.Scopes, opts.ForceConsent) || st.RedirectURI != cfg.RedirectURL):
			return "", errManualStateMismatch
		}
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	if tok.RefreshToken == "" {
		return "", errNoRefreshToken
	}
	if state != "" {
		_ = clearManualState(state)
	}
	return tok.RefreshToken, nil
}

func authorizeServer(ctx context.Context, opts AuthorizeOptions, cfg oauth2.Config) (string, error) {
	state, err := randomStateFn()
	if err != nil {
		return "", err
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for callback: %w", err)
	}
	defer func() { _ = ln.Close() }()

	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", ln.Addr().(*net.TCPAddr).Port, callbackPath)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           callbackHandler(state, codeCh, errCh),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			trySend(errCh, err)
		}
	}()

	authURL := cfg.AuthCodeURL(state, authURLParams(opts.ForceConsent)...)
	fmt.Fprintln(os.Stderr, "Opening browser for authorization…")
	fmt.Fprintln(os.Stderr, "If the browser doesn't open, visit this URL:")
	fmt.Fprintln(os.Stderr, authURL)
	_ = openBrowserFn(authURL)

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		_ = srv.Close()
		if err != nil {
			return "", fmt.Errorf("exchange code: %w", err)
		}
		if tok.RefreshToken == "" {
			return "", errNoRefreshToken
		}
		return tok.RefreshToken, nil
	case err := <-errCh:
		_ = srv.Close()
		return "", err
	case <-ctx.Done():
		_ = srv.Close()
		return "", fmt.Errorf("authorization canceled: %w", ctx.Err())
	}
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != callbackPath {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		switch {
		case q.Get("error") != "":
			trySend(errCh, fmt.Errorf("%w: %s", errAuthorization, q.Get("error")))
			renderPage(w, http.StatusOK, pageCancelled, "")
		case q.Get("state") != state:
			trySend(errCh, errStateMismatch)
			renderPage(w, http.StatusBadRequest, pageError, "State mismatch. Please try again.")
		case q.Get("code") == "":
			trySend(errCh, errMissingCode)
			renderPage(w, http.StatusBadRequest, pageError, "Missing authorization code. Please try again.")
		default:
			trySend(codeCh, q.Get("code"))
			renderPage(w, http.StatusOK, pageSuccess, "")
		}
	})
}

func trySend[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func randomLoopbackRedirectURI(ctx context.Context) (string, error) {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for manual redirect port: %w", err)
	}
	defer func() { _ = ln.Close() }()
	return fmt.Sprintf("http://127.0.0.1:%d%s", ln.Addr().(*net.TCPAddr).Port, callbackPath), nil
}

func redirectURIOf(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path)
}

func authURLParams(forceConsent bool) []oauth2.AuthCodeOption {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	if forceConsent {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "consent"))
	}
	return opts
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
