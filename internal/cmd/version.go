package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/steipete/sheetcal/internal/outfmt"
)

// Set with -ldflags "-X github.com/steipete/sheetcal/internal/cmd.version=...".
var (
	version = "0.1.0"
	commit  = ""
	date    = ""
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go"`
}

// currentBuild fills commit and date from the VCS stamp when ldflags left
// them empty, as for `go install`.
func currentBuild() buildInfo {
	b := buildInfo{
		Version: strings.TrimSpace(version),
		Commit:  strings.TrimSpace(commit),
		Date:    strings.TrimSpace(date),
		Go:      runtime.Version(),
	}
	if b.Version == "" {
		b.Version = "dev"
	}
	if info, ok := readBuildInfo(); ok && (b.Commit == "" || b.Date == "") {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && b.Commit == "":
				b.Commit = s.Value
				if len(b.Commit) > 12 {
					b.Commit = b.Commit[:12]
				}
			case s.Key == "vcs.time" && b.Date == "":
				b.Date = s.Value
			}
		}
	}
	return b
}

func VersionString() string {
	b := currentBuild()
	extra := strings.TrimSpace(b.Commit + " " + b.Date)
	if extra == "" {
		return b.Version
	}
	return fmt.Sprintf("%s (%s)", b.Version, extra)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(ctx context.Context) error {
	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, currentBuild())
	}
	fmt.Fprintln(os.Stdout, VersionString())
	return nil
}
