package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/steipete/sheetcal/internal/outfmt"
)

func TestDryRunExit_JSON_IgnoresResultsOnlyTransform(t *testing.T) {
	ctx := context.Background()
	ctx = outfmt.WithMode(ctx, outfmt.Mode{JSON: true})
	ctx = outfmt.WithJSONTransform(ctx, outfmt.JSONTransform{ResultsOnly: true})

	out := captureStdout(t, func() {
		err := dryRunExit(ctx, &RootFlags{DryRun: true}, "upload", map[string]any{"rows": []string{"7-9"}})
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != 0 {
			t.Fatalf("expected exit code 0, got: %v", err)
		}
	})

	if strings.TrimSpace(out) == "" {
		t.Fatalf("expected json output")
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal: %v\noutput=%q", err, out)
	}
	if got["dry_run"] != true {
		t.Fatalf("expected dry_run=true, got=%v", got["dry_run"])
	}
	if got["op"] != "upload" {
		t.Fatalf("expected op=upload, got=%v", got["op"])
	}
	if _, ok := got["request"]; !ok {
		t.Fatalf("expected request field, got=%v", got)
	}
}

func TestDryRunExit_JSON_IgnoresSelectTransform(t *testing.T) {
	ctx := context.Background()
	ctx = outfmt.WithMode(ctx, outfmt.Mode{JSON: true})
	ctx = outfmt.WithJSONTransform(ctx, outfmt.JSONTransform{Select: []string{"request"}})

	out := captureStdout(t, func() {
		err := dryRunExit(ctx, &RootFlags{DryRun: true}, "download", map[string]any{"from": "today"})
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != 0 {
			t.Fatalf("expected exit code 0, got: %v", err)
		}
	})

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal: %v\noutput=%q", err, out)
	}
	if got["dry_run"] != true {
		t.Fatalf("expected dry_run=true, got=%v", got["dry_run"])
	}
	if got["op"] != "download" {
		t.Fatalf("expected op=download, got=%v", got["op"])
	}
	if _, ok := got["request"]; !ok {
		t.Fatalf("expected request field, got=%v", got)
	}
}

func TestDryRunExit_PlainWritesTSV(t *testing.T) {
	ctx := outfmt.WithMode(context.Background(), outfmt.Mode{Plain: true})

	out := captureStdout(t, func() {
		if err := dryRunExit(ctx, &RootFlags{DryRun: true}, "edit", map[string]any{"range": "F7"}); ExitCode(err) != 0 {
			t.Fatalf("expected exit code 0, got: %v", err)
		}
	})
	want := "dry_run\ttrue\nop\tedit\nrequest_json\t{\"range\":\"F7\"}\n"
	if out != want {
		t.Fatalf("unexpected plain output %q", out)
	}
}

func TestDryRunExit_Disabled(t *testing.T) {
	if err := dryRunExit(context.Background(), &RootFlags{}, "upload", nil); err != nil {
		t.Fatalf("expected nil without --dry-run, got %v", err)
	}
	if err := dryRunExit(context.Background(), nil, "upload", nil); err != nil {
		t.Fatalf("expected nil for nil flags, got %v", err)
	}
}
