package main

import (
	"fmt"
	"os"

	"github.com/rocketscienceinc/tictactoe-hub/internal/cli"
)

// main - is the entry point of the application. Configuration and logging are set up by the cli commands.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	cli.Execute()
}
