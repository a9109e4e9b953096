package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var errInvalidClientJSON = errors.New("credentials JSON has neither an installed nor a web client")

type ClientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// CredentialsMissingError means no OAuth client file exists for Client.
type CredentialsMissingError struct {
	Client string
	Path   string
	Cause  error
}

func (e *CredentialsMissingError) Error() string {
	return fmt.Sprintf("OAuth client credentials missing for client %q (expected %s); download a Desktop client JSON from Google Cloud Console and run: sheetcal auth credentials <file>", e.Client, e.Path)
}

func (e *CredentialsMissingError) Unwrap() error { return e.Cause }

type googleClientFile struct {
	Installed *ClientCredentials `json:"installed"`
	Web       *ClientCredentials `json:"web"`
}

// ParseGoogleOAuthClientJSON accepts the JSON downloaded from Google Cloud
// Console ("installed" or "web") as well as a bare {client_id, client_secret}.
func ParseGoogleOAuthClientJSON(data []byte) (ClientCredentials, error) {
	var f googleClientFile
	if err := json.Unmarshal(data, &f); err != nil {
		return ClientCredentials{}, fmt.Errorf("parse credentials: %w", err)
	}

	var c *ClientCredentials
	switch {
	case f.Installed != nil:
		c = f.Installed
	case f.Web != nil:
		c = f.Web
	default:
		var bare ClientCredentials
		if err := json.Unmarshal(data, &bare); err != nil {
			return ClientCredentials{}, fmt.Errorf("parse credentials: %w", err)
		}
		c = &bare
	}

	out := ClientCredentials{
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: strings.TrimSpace(c.ClientSecret),
	}
	if out.ClientID == "" || out.ClientSecret == "" {
		return ClientCredentials{}, errInvalidClientJSON
	}
	return out, nil
}

func ReadClientCredentialsFor(client string) (ClientCredentials, error) {
	client = normalizeClient(client)
	path, err := ClientCredentialsPathFor(client)
	if err != nil {
		return ClientCredentials{}, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path
	if err != nil {
		if os.IsNotExist(err) {
			return ClientCredentials{}, &CredentialsMissingError{Client: client, Path: path, Cause: err}
		}
		return ClientCredentials{}, fmt.Errorf("read credentials: %w", err)
	}
	return ParseGoogleOAuthClientJSON(data)
}

func WriteClientCredentialsFor(client string, creds ClientCredentials) error {
	path, err := ClientCredentialsPathFor(client)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(googleClientFile{Installed: &creds}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}
