// Package command holds the CLI commands of inductiond.
package command

import (
	"github.com/hashicorp/cli"
)

// Commands returns the mapping of CLI commands. The meta parameter lets
// callers set common options.
func Commands(metaPtr *Meta) map[string]cli.CommandFactory {
	if metaPtr == nil {
		metaPtr = new(Meta)
	}
	meta := *metaPtr

	return map[string]cli.CommandFactory{
		"agent": func() (cli.Command, error) {
			return &AgentCommand{
				Meta: meta,
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &VersionCommand{
				Meta: meta,
			}, nil
		},
	}
}

// Meta contains the options common across commands.
type Meta struct {
	Ui cli.Ui
}
