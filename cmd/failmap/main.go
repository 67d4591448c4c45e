// Command failmap is the administrative executable of the failmap site: it
// migrates and seeds the store, serves the web front-end, runs task workers
// and queues scans from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(newCLI()).Execute(); err != nil {
		os.Exit(1)
	}
}
