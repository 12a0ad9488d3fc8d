//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

func reserved(sym rune) bool {
	return strings.ContainsRune(string(os.PathSeparator)+string(os.PathListSeparator), sym)
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
