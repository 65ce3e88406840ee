// Package main is the entry point for the ringq CLI.
package main

import (
	"os"

	"github.com/runger/ringq/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
