// Command tourismctl builds dashboard views from the configured sources
// without running the server.
package main

import (
	"os"

	"phtourism/internal/config"
)

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		os.Exit(1)
	}
}
