package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var errNoEmail = errors.New("userinfo returned no email")

var userinfoOptions = func(ts oauth2.TokenSource) []option.ClientOption {
	return []option.ClientOption{option.WithTokenSource(ts)}
}

// EmailForRefreshToken exchanges refreshToken and asks the userinfo
// endpoint which account it belongs to.
func EmailForRefreshToken(ctx context.Context, client string, refreshToken string, scopes []string, timeout time.Duration) (string, error) {
	creds, err := readClientCredentials(client)
	if err != nil {
		return "", err
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := oauthConfig(creds, scopes)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	svc, err := oauth2api.NewService(ctx, userinfoOptions(ts)...)
	if err != nil {
		return "", fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("userinfo: %w", err)
	}
	email := strings.TrimSpace(info.Email)
	if email == "" {
		return "", errNoEmail
	}
	return email, nil
}

// CheckRefreshToken verifies that refreshToken still yields an access token.
func CheckRefreshToken(ctx context.Context, client string, refreshToken string, scopes []string, timeout time.Duration) error {
	creds, err := readClientCredentials(client)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	cfg := oauthConfig(creds, scopes)
	if _, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token(); err != nil {
		return fmt.Errorf("refresh token check: %w", err)
	}
	return nil
}
