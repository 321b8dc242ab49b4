// Package main is the entry point for the leapmetric CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapmetric/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
