package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// progressPrinter renders pipeline progress. On a terminal it rewrites one
// line in place; otherwise it prints a line per update so logs stay legible.
type progressPrinter struct {
	out      io.Writer
	tty      bool
	lastLine int
	active   bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressPrinter{out: out, tty: tty}
}

func (p *progressPrinter) Update(percent int, message string) {
	if p.tty {
		line := fmt.Sprintf("[%3d%%] %s", percent, message)
		padding := ""
		if width := p.lastLine - len(line); width > 0 {
			padding = strings.Repeat(" ", width)
		}
		fmt.Fprintf(p.out, "\r%s%s", line, padding)
		p.lastLine = len(line)
		p.active = true
		return
	}
	fmt.Fprintf(p.out, "[%3d%%] %s\n", percent, message)
}

// Done terminates the in-place line so following output starts clean.
func (p *progressPrinter) Done() {
	if p.tty && p.active {
		fmt.Fprintln(p.out)
		p.active = false
	}
}
