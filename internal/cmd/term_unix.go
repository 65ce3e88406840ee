//go:build !windows

package cmd

import (
	"os"

	"golang.org/x/sys/unix"
)

// ioctlWidth asks the kernel for the width of the terminal on stdout.
func ioctlWidth() int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0
	}
	return int(ws.Col)
}
