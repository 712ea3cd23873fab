// Package main is the entrypoint for the zircon CLI.
// The CLI migrates and seeds databases and can run the startup sequence in
// front of a status server.
package main

import (
	"os"

	"github.com/canonica-labs/zircon/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
