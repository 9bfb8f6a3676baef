package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether f refers to a terminal. Auto output and the tui
// presenter both check stderr, which is where status is drawn.
func IsTTY(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int
}
