// Package main is the entry point for spoolctl, the broker's operator CLI.
package main

import (
	"os"

	"github.com/Bidon15/printspool/cmd/spoolctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
