// Package googleapi builds authenticated Sheets and Calendar clients.
package googleapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/googleauth"
	"github.com/steipete/sheetcal/internal/secrets"
)

const defaultHTTPTimeout = 30 * time.Second

var (
	readClientCredentials        = config.ReadClientCredentialsFor
	openSecretsStore             = secrets.OpenDefault
	newServiceAccountTokenSource = serviceAccountTokenSource
)

// AuthRequiredError means no refresh token is stored for the account.
type AuthRequiredError struct {
	Service string
	Email   string
	Client  string
	Cause   error
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("auth required for %s %s (run: sheetcal auth login %s)", e.Service, e.Email, e.Email)
}

func (e *AuthRequiredError) Unwrap() error { return e.Cause }

type authKey struct{}

// Auth selects the OAuth client bucket and an optional service account key.
type Auth struct {
	Client             string
	ServiceAccountFile string
}

func WithAuth(ctx context.Context, a Auth) context.Context {
	return context.WithValue(ctx, authKey{}, a)
}

func authFrom(ctx context.Context) Auth {
	a, _ := ctx.Value(authKey{}).(Auth)
	if strings.TrimSpace(a.Client) == "" {
		a.Client = config.DefaultClientName
	}
	return a
}

func tokenSourceForAccount(ctx context.Context, service googleauth.Service, email string) (oauth2.TokenSource, error) {
	client := authFrom(ctx).Client

	creds, err := readClientCredentials(client)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	scopes, err := googleauth.Scopes(service)
	if err != nil {
		return nil, fmt.Errorf("resolve scopes: %w", err)
	}

	return tokenSourceForAccountScopes(ctx, string(service), email, client, creds.ClientID, creds.ClientSecret, scopes)
}

func tokenSourceForAccountScopes(ctx context.Context, serviceLabel string, email string, client string, clientID string, clientSecret string, requiredScopes []string) (oauth2.TokenSource, error) {
	store, err := openSecretsStore()
	if err != nil {
		return nil, fmt.Errorf("open secrets store: %w", err)
	}

	tok, err := store.GetToken(client, email)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, &AuthRequiredError{Service: serviceLabel, Email: email, Client: client, Cause: err}
		}
		return nil, fmt.Errorf("get token for %s: %w", email, err)
	}

	cfg := oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       requiredScopes,
	}

	// Refresh exchanges get their own timeout.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: defaultHTTPTimeout})

	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}), nil
}

func serviceAccountTokenSource(ctx context.Context, keyJSON []byte, subject string, scopes []string) (oauth2.TokenSource, error) {
	cfg, err := google.JWTConfigFromJSON(keyJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	cfg.Subject = subject
	return cfg.TokenSource(ctx), nil
}

// tokenSourceForServiceAccountScopes uses the configured key file, or the
// per-account key stored under the config dir. ok is false when neither
// exists.
func tokenSourceForServiceAccountScopes(ctx context.Context, email string, scopes []string) (oauth2.TokenSource, string, bool, error) {
	path := strings.TrimSpace(authFrom(ctx).ServiceAccountFile)
	if path == "" {
		if email == "" {
			return nil, "", false, nil
		}
		p, err := config.ServiceAccountPath(email)
		if err != nil {
			return nil, "", false, err
		}
		path = p
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return nil, "", false, err
	}

	keyJSON, err := os.ReadFile(path) //nolint:gosec // config path
	if err != nil {
		if os.IsNotExist(err) && authFrom(ctx).ServiceAccountFile == "" {
			return nil, "", false, nil
		}
		return nil, "", false, fmt.Errorf("read service account key: %w", err)
	}

	ts, err := newServiceAccountTokenSource(ctx, keyJSON, email, scopes)
	if err != nil {
		return nil, "", false, err
	}
	return ts, path, true, nil
}

func optionsForAccount(ctx context.Context, service googleauth.Service, email string) ([]option.ClientOption, error) {
	scopes, err := googleauth.Scopes(service)
	if err != nil {
		return nil, fmt.Errorf("resolve scopes: %w", err)
	}

	return optionsForAccountScopes(ctx, string(service), email, scopes)
}

func optionsForAccountScopes(ctx context.Context, serviceLabel string, email string, scopes []string) ([]option.ClientOption, error) {
	slog.Debug("creating client options", "service", serviceLabel, "email", email)

	var ts oauth2.TokenSource

	if serviceAccountTS, saPath, ok, err := tokenSourceForServiceAccountScopes(ctx, email, scopes); err != nil {
		return nil, fmt.Errorf("service account token source: %w", err)
	} else if ok {
		slog.Debug("using service account credentials", "email", email, "path", saPath)
		ts = serviceAccountTS
	} else {
		if strings.TrimSpace(email) == "" {
			return nil, &AuthRequiredError{Service: serviceLabel, Email: email, Client: authFrom(ctx).Client, Cause: errNoAccount}
		}
		client := authFrom(ctx).Client
		creds, err := readClientCredentials(client)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		tokenSource, err := tokenSourceForAccountScopes(ctx, serviceLabel, email, client, creds.ClientID, creds.ClientSecret, scopes)
		if err != nil {
			return nil, fmt.Errorf("token source: %w", err)
		}
		ts = tokenSource
	}

	c := &http.Client{
		Transport: NewRetryTransport(&oauth2.Transport{
			Source: ts,
			Base:   newBaseTransport(),
		}),
		Timeout: defaultHTTPTimeout,
	}

	return []option.ClientOption{option.WithHTTPClient(c)}, nil
}

var errNoAccount = errors.New("no account configured (set --account, SHEETCAL_ACCOUNT or account in config)")

func newBaseTransport() *http.Transport {
	defaultTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok || defaultTransport == nil {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		}
	}

	transport := defaultTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		return transport
	}
	if transport.TLSClientConfig.MinVersion < tls.VersionTLS12 {
		transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	}
	return transport
}
