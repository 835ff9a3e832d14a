// Package main is the entry point for the fuzz CLI.
package main

import (
	"os"

	"github.com/runger/fuzz/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
