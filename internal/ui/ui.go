// Package ui prints human-oriented lines to stdout and stderr with optional
// color.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
)

type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// Color is auto, always or never.
	Color string
}

type UI struct {
	out *Printer
	err *Printer
}

type Printer struct {
	w      io.Writer
	output *termenv.Output
}

func New(opts Options) (*UI, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var profileOpt []termenv.OutputOption
	switch strings.ToLower(strings.TrimSpace(opts.Color)) {
	case "", "auto":
	case "always":
		profileOpt = append(profileOpt, termenv.WithProfile(termenv.ANSI256))
	case "never":
		profileOpt = append(profileOpt, termenv.WithProfile(termenv.Ascii))
	default:
		return nil, fmt.Errorf("invalid --color %q (expected auto, always or never)", opts.Color)
	}

	return &UI{
		out: newPrinter(opts.Stdout, profileOpt),
		err: newPrinter(opts.Stderr, profileOpt),
	}, nil
}

func newPrinter(w io.Writer, opts []termenv.OutputOption) *Printer {
	opts = append([]termenv.OutputOption{termenv.WithColorCache(true)}, opts...)
	return &Printer{w: w, output: termenv.NewOutput(w, opts...)}
}

func (u *UI) Out() *Printer { return u.out }
func (u *UI) Err() *Printer { return u.err }

// Printf writes one line; a trailing newline is added.
func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

func (p *Printer) Println(msg string) {
	p.line(msg)
}

func (p *Printer) Error(msg string) {
	p.line(p.styled(msg, "1"))
}

func (p *Printer) Warn(msg string) {
	p.line(p.styled(msg, "3"))
}

func (p *Printer) Success(msg string) {
	p.line(p.styled(msg, "2"))
}

// Dim renders secondary detail.
func (p *Printer) Dim(msg string) {
	p.line(p.output.String(msg).Faint().String())
}

func (p *Printer) styled(msg string, ansiColor string) string {
	return p.output.String(msg).Foreground(p.output.Color(ansiColor)).String()
}

func (p *Printer) line(s string) {
	_, _ = io.WriteString(p.w, strings.TrimRight(s, "\n")+"\n")
}

type ctxKey struct{}

func WithUI(ctx context.Context, u *UI) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func FromContext(ctx context.Context) *UI {
	u, _ := ctx.Value(ctxKey{}).(*UI)
	return u
}
