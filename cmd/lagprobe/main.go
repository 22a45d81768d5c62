// Command lagprobe measures input-to-capture latency.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/lagprobe/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
