// Package ansi holds the escape sequences and color table used to paint the
// shared console.
package ansi

import "strconv"

// ANSI escape sequence constants for terminal control.
const (
	CSI             = "\x1b["
	CursorHome      = "\x1b[1;1H"
	ClearFromCursor = "\x1b[0J"
	Reset           = "\x1b[0m"
	ShowCursor      = "\x1b[?25h"
)

// HypervisorColor is the foreground color code for hypervisor output (red).
const HypervisorColor = 31

// palette holds the capsule foreground colors: green, yellow, blue, magenta,
// cyan, white.
var palette = [...]int{32, 33, 34, 35, 36, 37}

// PaletteSize is the number of distinct capsule colors.
const PaletteSize = len(palette)

// CapsuleColor returns the foreground color code for a capsule.
func CapsuleColor(id int) int {
	return palette[id%PaletteSize]
}

// ClearScreen returns the cursor to the origin and clears the display below it.
func ClearScreen() string {
	return CursorHome + ClearFromCursor
}

// Foreground returns the bold foreground color sequence for code.
func Foreground(code int) string {
	return CSI + "1;" + strconv.Itoa(code) + "m"
}

// AppendForeground appends the foreground color sequence for code to dst.
func AppendForeground(dst []byte, code int) []byte {
	dst = append(dst, CSI...)
	dst = append(dst, '1', ';')
	dst = strconv.AppendInt(dst, int64(code), 10)

	return append(dst, 'm')
}
