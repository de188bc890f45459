// Command msync integrates legacy facility sync records into a normalized
// store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/msync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "msync:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
