package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/steipete/sheetcal/internal/input"
)

var (
	confirmPrompt = input.Confirm
	stdinIsTTY    = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

// confirmDestructive asks before an action that cannot be undone. --force
// skips the prompt; --no-input or a non-interactive stdin refuse.
func confirmDestructive(ctx context.Context, flags *RootFlags, action string) error {
	if flags == nil || flags.Force || flags.DryRun {
		return nil
	}
	if flags.NoInput || !stdinIsTTY() {
		return usagef("refusing to %s without confirmation (use --force)", action)
	}

	ok, err := confirmPrompt(ctx, fmt.Sprintf("Proceed to %s?", action))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &ExitError{Code: 1, Err: errors.New("cancelled")}
		}
		return err
	}
	if !ok {
		return &ExitError{Code: 1, Err: errors.New("cancelled")}
	}
	return nil
}
