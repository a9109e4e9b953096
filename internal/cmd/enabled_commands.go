package cmd

import (
	"strings"
)

// enforceCommandPolicy checks the kong command path ("auth login <email>")
// against the allow list (top-level names) and the deny list (dotted
// prefixes such as "auth.logout").
func enforceCommandPolicy(command, enabled, disabled string) error {
	parts := commandPath(command)
	if len(parts) == 0 {
		return nil
	}

	if allow := parseCommandList(enabled); len(allow) > 0 && !allow["*"] && !allow["all"] {
		if !allow[parts[0]] {
			return usagef("command %q is not enabled (set --enable-commands to allow it)", parts[0])
		}
	}

	deny := parseCommandList(disabled)
	for i := len(parts); i >= 1; i-- {
		if deny[strings.Join(parts[:i], ".")] {
			return usagef("command %q is disabled (blocked by --disable-commands)", strings.Join(parts[:i], " "))
		}
	}
	return nil
}

// commandPath drops kong's positional placeholders.
func commandPath(command string) []string {
	var out []string
	for _, f := range strings.Fields(command) {
		if strings.HasPrefix(f, "<") {
			continue
		}
		out = append(out, strings.ToLower(f))
	}
	return out
}

func parseCommandList(value string) map[string]bool {
	out := map[string]bool{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		out[part] = true
	}
	return out
}
