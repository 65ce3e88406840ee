//go:build windows

package cmd

func ioctlWidth() int {
	return 0
}
