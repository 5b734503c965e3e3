// Command ragctl is an operator CLI for the indexing/retrieval engine: it
// drives the same engine an editor's privileged process would, useful for
// scripting, debugging, and the doctor consistency check.
package main

import (
	"os"

	"github.com/docrag/engine/cmd/ragctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
