// Package input reads single lines from the terminal.
package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// PromptLine prints prompt to stderr and reads one line from stdin. It
// returns ctx.Err() if ctx ends first and io.EOF on an empty closed stdin.
func PromptLine(ctx context.Context, prompt string) (string, error) {
	return PromptLineFrom(ctx, prompt, os.Stdin, os.Stderr)
}

func PromptLineFrom(ctx context.Context, prompt string, in io.Reader, out io.Writer) (string, error) {
	if prompt != "" {
		_, _ = fmt.Fprint(out, prompt)
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		line := strings.TrimRight(r.line, "\r\n")
		if r.err != nil && (r.err != io.EOF || line == "") {
			return line, r.err
		}
		return line, nil
	}
}

// Confirm asks a yes/no question; anything but y/yes is a no.
func Confirm(ctx context.Context, prompt string) (bool, error) {
	line, err := PromptLine(ctx, prompt+" [y/N]: ")
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
