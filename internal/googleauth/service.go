// Package googleauth runs the OAuth authorization-code flow for the Google
// APIs sheetcal talks to.
package googleauth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type Service string

const (
	ServiceSheets   Service = "sheets"
	ServiceCalendar Service = "calendar"
)

var errUnknownService = errors.New("unknown service")

var identityScopes = []string{"openid", "email"}

var serviceScopes = map[Service][]string{
	ServiceSheets:   {"https://www.googleapis.com/auth/spreadsheets"},
	ServiceCalendar: {"https://www.googleapis.com/auth/calendar.events", "https://www.googleapis.com/auth/calendar.readonly"},
}

// UserServices are authorized by default.
func UserServices() []Service {
	return []Service{ServiceSheets, ServiceCalendar}
}

func UserServiceCSV() string {
	names := make([]string, 0, len(serviceScopes))
	for _, s := range UserServices() {
		names = append(names, string(s))
	}
	return strings.Join(names, ",")
}

func ParseService(raw string) (Service, error) {
	s := Service(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := serviceScopes[s]; !ok {
		return "", fmt.Errorf("%w %q (expected %s)", errUnknownService, raw, UserServiceCSV())
	}
	return s, nil
}

func Scopes(service Service) ([]string, error) {
	scopes, ok := serviceScopes[service]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownService, service)
	}
	return append([]string(nil), scopes...), nil
}

// ScopesFor is the sorted union of the services' scopes plus the identity
// scopes needed to learn the authorized email.
func ScopesFor(services []Service) ([]string, error) {
	out := append([]string(nil), identityScopes...)
	for _, svc := range services {
		scopes, err := Scopes(svc)
		if err != nil {
			return nil, err
		}
		for _, s := range scopes {
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}
