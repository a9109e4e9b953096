package googleauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/config"
)

// Pending manual authorizations are kept on disk between `auth login
// --remote --step 1` and `--step 2`, one file per state value.
const (
	manualStateFilePrefix = "oauth-state-"
	manualStateFileSuffix = ".json"

	// manualStateTTL stays below Google's authorization code lifetime.
	manualStateTTL = 10 * time.Minute
)

var errEmptyManualAuthState = errors.New("empty manual auth state")

type manualState struct {
	State        string    `json:"state"`
	Client       string    `json:"client"`
	Scopes       []string  `json:"scopes"`
	ForceConsent bool      `json:"force_consent,omitempty"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s manualState) matches(client string, scopes []string, forceConsent bool) bool {
	return s.Client == client && s.ForceConsent == forceConsent && scopesEqual(s.Scopes, scopes)
}

var (
	manualStateDirFn = config.EnsureDir
	manualStateNowFn = time.Now
)

func manualStatePath(state string) (string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return "", errEmptyManualAuthState
	}
	dir, err := manualStateDirFn()
	if err != nil {
		return "", fmt.Errorf("manual auth state dir: %w", err)
	}
	return filepath.Join(dir, manualStateFilePrefix+state+manualStateFileSuffix), nil
}

// readManualState loads one state file. Expired or unreadable files are
// removed and reported as absent.
func readManualState(path string) (manualState, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path
	if err != nil {
		if os.IsNotExist(err) {
			return manualState{}, false, nil
		}
		return manualState{}, false, fmt.Errorf("read manual auth state: %w", err)
	}

	var st manualState
	if json.Unmarshal(data, &st) != nil || st.State == "" || st.RedirectURI == "" ||
		manualStateNowFn().Sub(st.CreatedAt) > manualStateTTL {
		_ = os.Remove(path)
		return manualState{}, false, nil
	}
	return st, true, nil
}

func loadManualStateFor(state string) (manualState, bool, error) {
	path, err := manualStatePath(state)
	if err != nil {
		return manualState{}, false, err
	}
	return readManualState(path)
}

// latestManualState returns the newest live state for the same request, so
// repeating step 1 hands out the same URL.
func latestManualState(client string, scopes []string, forceConsent bool) (manualState, bool, error) {
	dir, err := manualStateDirFn()
	if err != nil {
		return manualState{}, false, fmt.Errorf("manual auth state dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return manualState{}, false, fmt.Errorf("read manual auth state dir: %w", err)
	}

	var best manualState
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(name, manualStateFilePrefix) || !strings.HasSuffix(name, manualStateFileSuffix) {
			continue
		}
		st, ok, err := readManualState(filepath.Join(dir, name))
		if err != nil {
			return manualState{}, false, err
		}
		if ok && st.matches(client, scopes, forceConsent) && st.CreatedAt.After(best.CreatedAt) {
			best = st
		}
	}
	return best, best.State != "", nil
}

func saveManualState(st manualState) error {
	path, err := manualStatePath(st.State)
	if err != nil {
		return err
	}
	st.Scopes = normalizeScopes(st.Scopes)
	st.CreatedAt = manualStateNowFn().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manual auth state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write manual auth state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit manual auth state: %w", err)
	}
	return nil
}

func clearManualState(state string) error {
	path, err := manualStatePath(state)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove manual auth state: %w", err)
	}
	return nil
}

func normalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	out := slices.Clone(scopes)
	slices.Sort(out)
	return slices.Compact(out)
}

func scopesEqual(a, b []string) bool {
	return slices.Equal(normalizeScopes(a), normalizeScopes(b))
}
