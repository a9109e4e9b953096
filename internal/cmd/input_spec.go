package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/steipete/sheetcal/internal/config"
)

// inputSource says how a bare argument (no @ and not -) is read.
type inputSource int

const (
	inlineOrFile inputSource = iota // bare value is the document itself
	fileOnly                        // bare value is a path
)

// readInput reads a JSON document named by a flag or argument: "-" or "@-"
// for stdin, "@path" for a file, otherwise per src. Empty input is an error
// naming what.
func readInput(what, value string, src inputSource) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, usagef("%s is empty", what)
	}

	path := value
	switch {
	case value == "-" || value == "@-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read %s from stdin: %w", what, err)
		}
		return nonEmpty(what, b)
	case strings.HasPrefix(value, "@"):
		path = strings.TrimSpace(value[1:])
		if path == "" {
			return nil, usagef("%s: empty @file reference", what)
		}
	case src == inlineOrFile:
		return []byte(value), nil
	}

	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded) //nolint:gosec // user-provided path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	return nonEmpty(what, b)
}

func nonEmpty(what string, b []byte) ([]byte, error) {
	if strings.TrimSpace(string(b)) == "" {
		return nil, usagef("%s is empty", what)
	}
	return b, nil
}
