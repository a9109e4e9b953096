// Package errfmt renders errors for people reading a terminal.
package errfmt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
	"github.com/alecthomas/kong"
	ggoogleapi "google.golang.org/api/googleapi"

	"github.com/steipete/sheetcal/internal/config"
	"github.com/steipete/sheetcal/internal/googleapi"
	"github.com/steipete/sheetcal/internal/layout"
)

// Format returns a one-or-two line message for err, adding a hint when the
// fix is known.
func Format(err error) string {
	if err == nil {
		return ""
	}

	var parseErr *kong.ParseError
	if errors.As(err, &parseErr) {
		return formatParseError(parseErr)
	}

	var authErr *googleapi.AuthRequiredError
	if errors.As(err, &authErr) {
		if authErr.Email == "" {
			return "No account selected.\nSet --account, SHEETCAL_ACCOUNT or \"account\" in the config file, then run: sheetcal auth login <email>"
		}
		return fmt.Sprintf("No refresh token for %s (%s).\nRun: sheetcal auth login %s", authErr.Email, authErr.Service, authErr.Email)
	}

	var credErr *config.CredentialsMissingError
	if errors.As(err, &credErr) {
		return fmt.Sprintf("OAuth client credentials missing (expected %s).\nDownload a Desktop OAuth client JSON and run: sheetcal auth credentials <file>", credErr.Path)
	}

	var cfgErr *layout.ConfigError
	if errors.As(err, &cfgErr) {
		return fmt.Sprintf("Configuration error in %s: %v\nCheck the layout section (sheetcal config show).", cfgErr.Field, cfgErr.Err)
	}

	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "Secret not found in keyring.\nRun: sheetcal auth login <email>"
	}

	var gerr *ggoogleapi.Error
	if errors.As(err, &gerr) {
		return formatGoogleAPIError(gerr)
	}

	return err.Error()
}

func formatParseError(err *kong.ParseError) string {
	msg := strings.TrimSpace(err.Error())
	if err.Context == nil || err.Context.Selected() == nil {
		return msg + "\nRun with --help to see usage."
	}
	return fmt.Sprintf("%s\nRun: sheetcal %s --help", msg, err.Context.Selected().Path())
}

func formatGoogleAPIError(err *ggoogleapi.Error) string {
	msg := strings.TrimSpace(err.Message)
	if msg == "" {
		msg = strings.TrimSpace(err.Body)
	}
	reason := ""
	if len(err.Errors) > 0 {
		reason = err.Errors[0].Reason
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Google API error (%d", err.Code)
	if reason != "" {
		fmt.Fprintf(&b, " %s", reason)
	}
	b.WriteString(")")
	if msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}

	switch err.Code {
	case 401:
		b.WriteString("\nThe stored token was rejected; run: sheetcal auth login <email>")
	case 403:
		if strings.Contains(strings.ToLower(msg), "has not been used") || strings.Contains(strings.ToLower(msg), "is disabled") {
			b.WriteString("\nEnable the Sheets and Calendar APIs for your OAuth project in Google Cloud Console.")
		} else {
			b.WriteString("\nCheck that the account can edit the spreadsheet and calendar.")
		}
	case 404:
		b.WriteString("\nCheck spreadsheet_id and calendar.id in the config file.")
	}
	return b.String()
}
