package main

import (
	"errors"
	"fmt"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	logger core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate           - create the database if missing and apply pending migrations")
	fmt.Println("  populate-profiles - build missing chapter snapshots for existing completion profiles")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "populate-profiles":
		return cli.populateProfiles()
	default:
		cli.printUsage()
		return errHelp
	}
}
