package googleapi

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/sheets/v4"

	"github.com/steipete/sheetcal/internal/googleauth"
)

func NewSheets(ctx context.Context, email string) (*sheets.Service, error) {
	if opts, err := optionsForAccount(ctx, googleauth.ServiceSheets, email); err != nil {
		return nil, fmt.Errorf("sheets options: %w", err)
	} else if svc, err := sheets.NewService(ctx, opts...); err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	} else {
		return svc, nil
	}
}

func NewCalendar(ctx context.Context, email string) (*calendar.Service, error) {
	if opts, err := optionsForAccount(ctx, googleauth.ServiceCalendar, email); err != nil {
		return nil, fmt.Errorf("calendar options: %w", err)
	} else if svc, err := calendar.NewService(ctx, opts...); err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	} else {
		return svc, nil
	}
}
