// The main package for the crawler executable.
package main

import (
	"os"

	"github.com/doublexl-digital/cloudflare-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
