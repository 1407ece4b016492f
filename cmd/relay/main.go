// Package main is the entry point for the relay CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/relayproj/relay/internal/cmd"
	"github.com/relayproj/relay/internal/logging"
)

func main() {
	defer logging.Close()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
