// Package output provides consistent CLI output formatting with colors
// and progress indicators. Colors engage only on interactive terminals
// and respect the NO_COLOR convention.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// Writer provides formatted output for CLI commands.
type Writer struct {
	out      io.Writer
	isTTY    bool
	useColor bool
}

// New creates a Writer that detects the capabilities of out. Piped
// output and CI runs get plain text; NO_COLOR disables colors even on
// a terminal.
func New(out io.Writer) *Writer {
	tty := IsTTY(out)
	return &Writer{
		out:      out,
		isTTY:    tty,
		useColor: tty && !NoColorRequested() && !RunningInCI(),
	}
}

// NewPlain creates a Writer with colors and in-place updates disabled,
// for machine-read output modes.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out}
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// NoColorRequested reports whether the NO_COLOR convention is in effect.
// Any value, including empty, counts as set.
func NoColorRequested() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// RunningInCI reports whether a known CI environment is detected.
func RunningInCI() bool {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with a checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.paint(ansiGreen, msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.paint(ansiYellow, msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.paint(ansiRed, msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold section heading.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", w.paint(ansiBold, title))
}

// Field prints an aligned label/value line for summary output.
func (w *Writer) Field(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-20s %v\n", label+":", value)
}

// Code prints an indented code block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints an in-place progress bar. On non-interactive output
// it stays silent; the caller's completion summary carries the totals.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 || !w.isTTY {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone terminates an unfinished progress line.
func (w *Writer) ProgressDone() {
	if !w.isTTY {
		return
	}
	_, _ = fmt.Fprintln(w.out)
}

func (w *Writer) paint(code, s string) string {
	if !w.useColor {
		return s
	}
	return code + s + ansiReset
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
