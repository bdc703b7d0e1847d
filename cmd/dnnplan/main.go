// Command dnnplan compiles static DNN graphs into GPU pipeline artifacts.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/dnnplan/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()

	// Commands report their own failures; cobra usage errors are printed here.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
