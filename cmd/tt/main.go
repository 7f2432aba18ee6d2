// Command tt is the command line client for tasktime.
package main

import (
	"os"

	"github.com/and161185/tasktime/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
