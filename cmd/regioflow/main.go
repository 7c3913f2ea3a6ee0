// Command regioflow runs the regionalization pipeline and its schema
// migrations.
package main

import (
	"errors"
	"os"

	"github.com/turtacn/regioflow/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	err := cli.Execute()
	switch {
	case err == nil:
	case errors.Is(err, cli.ErrPartialRun):
		// Output was written; some commodities violated invariants.
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
