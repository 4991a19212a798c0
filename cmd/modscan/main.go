// Command modscan runs the Modbus TCP scan service and its client commands.
package main

import "github.com/anstrom/modscan/cmd/cli"

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
