package main

import (
	"fmt"
	"os"

	"advisory-canvas/internal/cli"
	"advisory-canvas/internal/logging"
)

func main() {
	cmd := cli.NewRootCmd(logging.NewLogger())
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
