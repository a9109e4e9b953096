// Package secrets keeps OAuth refresh tokens in the OS keyring.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"github.com/steipete/sheetcal/internal/config"
)

const (
	EnvKeyringBackend  = "SHEETCAL_KEYRING_BACKEND"
	EnvKeyringPassword = "SHEETCAL_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential

	tokenPrefix       = "token:"
	defaultAccountKey = "default_account"
)

var (
	errMissingEmail        = errors.New("missing email")
	errMissingRefreshToken = errors.New("missing refresh token")
	errMissingSecretKey    = errors.New("missing secret key")
	errNoTTY               = errors.New("no TTY available for keyring file backend password prompt")
	errUnknownBackend      = errors.New("unknown keyring backend")
)

type Store interface {
	Keys() ([]string, error)
	SetToken(client string, email string, tok Token) error
	GetToken(client string, email string) (Token, error)
	DeleteToken(client string, email string) error
	ListTokens() ([]Token, error)
	GetDefaultAccount(client string) (string, error)
	SetDefaultAccount(client string, email string) error
}

type Token struct {
	Client       string    `json:"client,omitempty"`
	Email        string    `json:"email"`
	Services     []string  `json:"services,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	RefreshToken string    `json:"-"`
}

type storedToken struct {
	RefreshToken string    `json:"refresh_token"`
	Services     []string  `json:"services,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type KeyringStore struct {
	ring keyring.Keyring
}

var openKeyringFunc = openKeyring

func OpenDefault() (Store, error) {
	ring, err := openKeyringFunc()
	if err != nil {
		return nil, err
	}
	return &KeyringStore{ring: ring}, nil
}

// KeyringBackendInfo is the configured backend and where the choice came from.
type KeyringBackendInfo struct {
	Value  string
	Source string
}

const (
	keyringBackendSourceEnv     = "env"
	keyringBackendSourceConfig  = "config"
	keyringBackendSourceDefault = "default"
	keyringBackendAuto          = "auto"
	keyringBackendFile          = "file"
)

func ResolveKeyringBackendInfo() (KeyringBackendInfo, error) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvKeyringBackend))); v != "" {
		return KeyringBackendInfo{Value: v, Source: keyringBackendSourceEnv}, nil
	}
	cfg, err := config.ReadConfig()
	if err != nil {
		return KeyringBackendInfo{}, fmt.Errorf("resolve keyring backend: %w", err)
	}
	if v := strings.ToLower(strings.TrimSpace(cfg.KeyringBackend)); v != "" {
		return KeyringBackendInfo{Value: v, Source: keyringBackendSourceConfig}, nil
	}
	return KeyringBackendInfo{Value: keyringBackendAuto, Source: keyringBackendSourceDefault}, nil
}

func allowedBackends(info KeyringBackendInfo) ([]keyring.BackendType, error) {
	switch info.Value {
	case "", keyringBackendAuto:
		return nil, nil
	case "keychain":
		return []keyring.BackendType{keyring.KeychainBackend}, nil
	case "secret-service", "secretservice":
		return []keyring.BackendType{keyring.SecretServiceBackend}, nil
	case "wincred":
		return []keyring.BackendType{keyring.WinCredBackend}, nil
	case keyringBackendFile:
		return []keyring.BackendType{keyring.FileBackend}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected auto, keychain, secret-service, wincred or file)", errUnknownBackend, info.Value)
	}
}

func fileKeyringPasswordFuncFrom(password string, isTTY bool) keyring.PromptFunc {
	if password != "" {
		return keyring.FixedStringPrompt(password)
	}
	if isTTY {
		return keyring.TerminalPrompt
	}
	return func(string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoTTY, EnvKeyringPassword)
	}
}

func openKeyring() (keyring.Keyring, error) {
	info, err := ResolveKeyringBackendInfo()
	if err != nil {
		return nil, err
	}
	backends, err := allowedBackends(info)
	if err != nil {
		return nil, err
	}
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              config.AppName,
		AllowedBackends:          backends,
		KeychainTrustApplication: true,
		FileDir:                  filepath.Join(dir, "keyring"),
		FilePasswordFunc: fileKeyringPasswordFuncFrom(
			os.Getenv(EnvKeyringPassword),
			term.IsTerminal(int(os.Stdin.Fd())),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", wrapKeychainError(err))
	}
	return ring, nil
}

// wrapKeychainError adds an unlock hint to macOS "keychain locked" errors.
func wrapKeychainError(err error) error {
	if err == nil || runtime.GOOS != "darwin" {
		return err
	}
	if strings.Contains(err.Error(), "-25308") {
		return fmt.Errorf("keychain is locked; unlock it with `security unlock-keychain` or use %s=file: %w", EnvKeyringBackend, err)
	}
	return err
}

// EnsureKeychainAccess opens the keyring once so a locked keychain fails
// before the OAuth browser round-trip starts.
func EnsureKeychainAccess() error {
	ring, err := openKeyringFunc()
	if err != nil {
		return err
	}
	if _, err := ring.Keys(); err != nil {
		return wrapKeychainError(err)
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeClient(client string) string {
	client = strings.ToLower(strings.TrimSpace(client))
	if client == "" {
		return config.DefaultClientName
	}
	return client
}

func tokenKey(client string, email string) string {
	return tokenPrefix + normalizeClient(client) + ":" + email
}

func legacyTokenKey(email string) string {
	return tokenPrefix + email
}

func defaultAccountKeyForClient(client string) string {
	return defaultAccountKey + ":" + normalizeClient(client)
}

// ParseTokenKey splits token:<client>:<email> or the legacy token:<email>.
func ParseTokenKey(key string) (client string, email string, ok bool) {
	rest, found := strings.CutPrefix(key, tokenPrefix)
	if !found || strings.TrimSpace(rest) == "" {
		return "", "", false
	}
	if c, e, hasClient := strings.Cut(rest, ":"); hasClient && !strings.Contains(c, "@") {
		if strings.TrimSpace(e) == "" {
			return "", "", false
		}
		return c, e, true
	}
	return config.DefaultClientName, rest, true
}

func (s *KeyringStore) Keys() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, wrapKeychainError(err)
	}
	return keys, nil
}

func (s *KeyringStore) set(key string, data []byte) error {
	if err := s.ring.Set(keyring.Item{Key: key, Data: data, Label: config.AppName}); err != nil {
		return wrapKeychainError(err)
	}
	return nil
}

func (s *KeyringStore) SetToken(client string, email string, tok Token) error {
	email = normalize(email)
	if email == "" {
		return errMissingEmail
	}
	if tok.RefreshToken == "" {
		return errMissingRefreshToken
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(storedToken{
		RefreshToken: tok.RefreshToken,
		Services:     tok.Services,
		Scopes:       tok.Scopes,
		CreatedAt:    tok.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if err := s.set(tokenKey(client, email), payload); err != nil {
		return err
	}
	if normalizeClient(client) == config.DefaultClientName {
		return s.set(legacyTokenKey(email), payload)
	}
	return nil
}

func (s *KeyringStore) GetToken(client string, email string) (Token, error) {
	email = normalize(email)
	if email == "" {
		return Token{}, errMissingEmail
	}

	item, err := s.ring.Get(tokenKey(client, email))
	if errors.Is(err, keyring.ErrKeyNotFound) && normalizeClient(client) == config.DefaultClientName {
		legacy, legacyErr := s.ring.Get(legacyTokenKey(email))
		if legacyErr != nil {
			return Token{}, legacyErr
		}
		// Copy the legacy item forward so later reads hit the client key.
		if setErr := s.set(tokenKey(client, email), legacy.Data); setErr != nil {
			return Token{}, setErr
		}
		item, err = legacy, nil
	}
	if err != nil {
		return Token{}, err
	}

	return decodeToken(client, email, item.Data)
}

func decodeToken(client string, email string, data []byte) (Token, error) {
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return Token{}, fmt.Errorf("decode token for %s: %w", email, err)
	}
	return Token{
		Client:       normalizeClient(client),
		Email:        email,
		Services:     st.Services,
		Scopes:       st.Scopes,
		CreatedAt:    st.CreatedAt,
		RefreshToken: st.RefreshToken,
	}, nil
}

func (s *KeyringStore) DeleteToken(client string, email string) error {
	email = normalize(email)
	if email == "" {
		return errMissingEmail
	}
	keys := []string{tokenKey(client, email)}
	if normalizeClient(client) == config.DefaultClientName {
		keys = append(keys, legacyTokenKey(email))
	}
	for _, k := range keys {
		if err := s.ring.Remove(k); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return wrapKeychainError(err)
		}
	}
	return nil
}

// ListTokens returns one token per client and email, skipping legacy keys
// that have a client-scoped copy.
func (s *KeyringStore) ListTokens() ([]Token, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]Token, 0)
	for _, k := range keys {
		client, email, ok := ParseTokenKey(k)
		if !ok {
			continue
		}
		id := normalizeClient(client) + ":" + email
		if seen[id] {
			continue
		}
		item, err := s.ring.Get(k)
		if err != nil {
			return nil, wrapKeychainError(err)
		}
		tok, err := decodeToken(client, email, item.Data)
		if err != nil {
			return nil, err
		}
		seen[id] = true
		out = append(out, tok)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Client != out[j].Client {
			return out[i].Client < out[j].Client
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (s *KeyringStore) GetDefaultAccount(client string) (string, error) {
	for _, k := range []string{defaultAccountKeyForClient(client), defaultAccountKey} {
		item, err := s.ring.Get(k)
		if errors.Is(err, keyring.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return "", wrapKeychainError(err)
		}
		return string(item.Data), nil
	}
	return "", nil
}

func (s *KeyringStore) SetDefaultAccount(client string, email string) error {
	email = normalize(email)
	if email == "" {
		return errMissingEmail
	}
	if err := s.set(defaultAccountKeyForClient(client), []byte(email)); err != nil {
		return err
	}
	return s.set(defaultAccountKey, []byte(email))
}

// SetSecret stores an arbitrary value under key.
func SetSecret(key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return errMissingSecretKey
	}
	ring, err := openKeyringFunc()
	if err != nil {
		return err
	}
	return (&KeyringStore{ring: ring}).set(key, value)
}

func GetSecret(key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errMissingSecretKey
	}
	ring, err := openKeyringFunc()
	if err != nil {
		return nil, err
	}
	item, err := ring.Get(key)
	if err != nil {
		return nil, wrapKeychainError(err)
	}
	return item.Data, nil
}
