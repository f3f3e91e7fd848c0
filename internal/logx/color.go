package logx

import (
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
)

const (
	ansiGreen  = "\033[97;42m"
	ansiYellow = "\033[90;43m"
	ansiRed    = "\033[97;41m"
	ansiReset  = "\033[0m"
)

// IsTerminal reports whether w is a terminal, including cygwin ptys.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ColorizeStatus wraps the status code in an ANSI background by class.
func ColorizeStatus(status int, color bool) string {
	s := strconv.Itoa(status)
	if !color {
		return s
	}
	c := ansiGreen
	switch {
	case status >= 500:
		c = ansiRed
	case status >= 400:
		c = ansiYellow
	}
	return c + " " + s + " " + ansiReset
}
