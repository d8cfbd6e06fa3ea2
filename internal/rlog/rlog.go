// Package rlog is a minimal wrapper around an io.Writer, enriched with
// colorized status lines and a download progress bar when attached to an
// interactive terminal.
package rlog

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Logger writes leveled status lines to an io.Writer, coloring them when
// the writer is a terminal.
type Logger struct {
	io.Writer
	color bool
	trace bool
}

// New returns a new Logger writing to w. trace enables verbose resolver
// trace output.
func New(w io.Writer, trace bool) *Logger {
	colorOK := false
	if f, ok := w.(*os.File); ok {
		colorOK = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{Writer: w, color: colorOK, trace: trace}
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string.
func (l *Logger) Logf(f string, args ...interface{}) {
	fmt.Fprintf(l, f, args...)
}

// LogDepfln logs a formatted line, prefixed with "jpkg: ".
func (l *Logger) LogDepfln(format string, args ...interface{}) {
	fmt.Fprintf(l, "jpkg: "+format+"\n", args...)
}

// Tracef logs a formatted trace line only when trace mode is enabled.
func (l *Logger) Tracef(format string, args ...interface{}) {
	if !l.trace {
		return
	}
	fmt.Fprintf(l, "  "+format+"\n", args...)
}

// Status reports per-coordinate installer progress: cache-hit, downloading,
// or verified, colorized when attached to a terminal.
func (l *Logger) Status(coord, verb string) {
	if !l.color {
		fmt.Fprintf(l, "%s: %s\n", coord, verb)
		return
	}
	switch verb {
	case "cached", "verified":
		fmt.Fprintf(l, "%s %s\n", color.GreenString(verb), coord)
	case "downloading":
		fmt.Fprintf(l, "%s %s\n", color.CyanString(verb), coord)
	default:
		fmt.Fprintf(l, "%s %s\n", color.YellowString(verb), coord)
	}
}

// NewDownloadBar returns a progress bar for a single archive download of
// the given size in bytes, or a no-op bar when output isn't a terminal.
func (l *Logger) NewDownloadBar(label string, size int64) *progressbar.ProgressBar {
	if !l.color {
		return progressbar.DefaultBytesSilent(size, label)
	}
	return progressbar.DefaultBytes(size, label)
}
