package main

import (
	"fmt"
	"os"

	"chatd/internal/config"
)

// RunCLI handles subcommand execution. Returns true if a subcommand
// was handled.
func RunCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "version":
		fmt.Printf("chatd %s\n", Version)
		return true
	case "checkconfig":
		return cliCheckConfig(args[1:])
	default:
		return false
	}
}

// cliCheckConfig parses the given files into a fresh configuration and
// prints the canonical form, so admins can validate edits before a
// restart.
func cliCheckConfig(files []string) bool {
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: chatd checkconfig <file...>\n")
		os.Exit(1)
	}
	cfg := config.New()
	for _, f := range files {
		if err := cfg.ProcessFile(f, false); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Print(cfg.String())
	return true
}
