// ./main.go
package main

import (
	"github.com/xkilldash9x/scout-cli/cmd"
)

// main is the entry point for the scout CLI.
func main() {
	// Execute handles command-line parsing, configuration, and execution.
	cmd.Execute()
}
