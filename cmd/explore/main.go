// Command explore is the thin CLI collaborator around the exploration core:
// it owns configuration file parsing and validation and nothing else —
// actually driving an exploration run requires Go-level Action/Invariant
// registration (the embedding project's own code, or a higher-level journey
// DSL), so this binary never dispatches an Agent itself. A cobra root with a
// version command plus one real subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/venomqa/venomqa/cmd/explore/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cmd.SetVersion(version, buildTime, gitCommit)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitStatus(err))
	}
}

// exitStatus maps a returned error to the CLI's exit-status discipline: 0
// success (unreachable here, Execute returns nil), 2 configuration error, 3
// infrastructure/runtime error. cmd.Execute only ever returns configuration
// or I/O errors, so this binary's own exit vocabulary is {0, 2, 3}.
func exitStatus(err error) int {
	if cmd.IsConfigurationError(err) {
		return 2
	}
	return 3
}
