package cmd

import (
	"os"
	"strconv"
)

const (
	defaultTermWidth = 80
	maxBoxWidth      = 60
)

// termWidth returns the width of the terminal on stdout, falling back to
// $COLUMNS and then to 80 columns when stdout is not a terminal.
func termWidth() int {
	if w := ioctlWidth(); w > 0 {
		return w
	}
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && w > 0 {
		return w
	}
	return defaultTermWidth
}

// boxWidth is the outer width of the status box for the current terminal.
func boxWidth() int {
	return min(termWidth(), maxBoxWidth)
}
