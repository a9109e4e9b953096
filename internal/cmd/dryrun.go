package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/ui"
)

// dryRunExit prints the intended operation and exits successfully (exit
// code 0). Mutating commands call it before touching the keyring, the sheet
// or the calendar.
func dryRunExit(ctx context.Context, flags *RootFlags, op string, request any) error {
	if flags == nil || !flags.DryRun {
		return nil
	}
	done := &ExitError{Code: 0}

	switch {
	case outfmt.IsJSON(ctx):
		// Transforms would hide the envelope this output is made of.
		jsonCtx := outfmt.WithJSONTransform(ctx, outfmt.JSONTransform{})
		_ = outfmt.WriteJSON(jsonCtx, os.Stdout, map[string]any{
			"dry_run": true,
			"op":      op,
			"request": request,
		})
	case outfmt.IsPlain(ctx):
		records := [][]string{{"dry_run", "true"}, {"op", op}}
		if request != nil {
			if b, err := json.Marshal(request); err == nil {
				records = append(records, []string{"request_json", string(b)})
			}
		}
		_ = outfmt.WriteTSV(os.Stdout, records)
	default:
		u := ui.FromContext(ctx)
		if u == nil {
			_, _ = os.Stdout.WriteString("Dry run: would " + op + "\n")
			return done
		}
		u.Out().Printf("Dry run: would %s", op)
		if request != nil {
			if b, err := json.MarshalIndent(request, "", "  "); err == nil {
				u.Out().Println(string(b))
			}
		}
	}
	return done
}
