package main

import (
	"fmt"

	// Packages
	version "github.com/mutablelogic/go-intray/pkg/version"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type VersionCommands struct {
	Version VersionCommand `cmd:"" name:"version" help:"Print version information."`
}

type VersionCommand struct{}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *VersionCommand) Run(app App) error {
	fmt.Println(string(version.JSON(app.Name())))
	return nil
}
