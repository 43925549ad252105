// Command rowstore queries and edits the keyed tables described by
// config.yaml.
package main

import (
	"os"

	"github.com/mesh-intelligence/rowstore/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
