// Command fonline runs the FOnline client renderer on a desktop window or
// headless against an in-memory surface.
package main

import (
	"os"

	"github.com/fonline/droidbridge/cmd/fonline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
