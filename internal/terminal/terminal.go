// Package terminal detects what the controlling terminal can do.
//
// The console renderer writes raw escape sequences to stdout and reads
// keystrokes from stdin, so both ends are probed.
package terminal

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// Color modes accepted by Info.ConsoleColor.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Info holds terminal capability information.
type Info struct {
	IsTTY     bool
	StdinTTY  bool
	NoColor   bool
	Width     int
	Height    int
	ForceFlag bool // Set when --no-color flag is used
}

// Detect returns terminal information for the current environment.
func Detect() *Info {
	return detect(os.Stdout, os.Stdin)
}

func detect(stdout, stdin *os.File) *Info {
	stdoutFD := int(stdout.Fd())
	isTTY := term.IsTerminal(stdoutFD)

	width, height := 80, 24

	if isTTY {
		if w, h, err := term.GetSize(stdoutFD); err == nil {
			width, height = w, h
		}
	}

	// https://no-color.org/
	_, noColor := os.LookupEnv("NO_COLOR")

	if os.Getenv("TERM") == "dumb" {
		noColor = true
	}

	return &Info{
		IsTTY:    isTTY,
		StdinTTY: term.IsTerminal(int(stdin.Fd())),
		NoColor:  noColor,
		Width:    width,
		Height:   height,
	}
}

// ColorEnabled returns true if colored status output should be used.
func (t *Info) ColorEnabled() bool {
	if t.ForceFlag {
		return false
	}

	return t.IsTTY && !t.NoColor
}

// ConsoleColor resolves a configured color mode for the rendered console.
// Unknown modes behave like auto.
func (t *Info) ConsoleColor(mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return t.ColorEnabled()
	}
}

// RawInputEnabled reports whether stdin can be switched to raw mode.
func (t *Info) RawInputEnabled() bool {
	return t.StdinTTY
}

// SpinnersEnabled returns true if spinners should be used.
func (t *Info) SpinnersEnabled() bool {
	return t.IsTTY && !t.NoColor
}
