package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"

	"github.com/kochimetro/inductiond/command"
	"github.com/kochimetro/inductiond/version"
)

func main() {
	os.Exit(Run(os.Args[1:]))
}

// Run executes the CLI and returns the exit code.
func Run(args []string) int {
	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := cli.NewCLI("inductiond", version.GetVersion().FullVersionNumber())
	c.Args = args
	c.Commands = command.Commands(&command.Meta{Ui: ui})

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
		return 1
	}

	return exitCode
}
