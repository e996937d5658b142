package main

import (
	"fmt"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database"
)

func (cli *commandLine) migrate() error {
	if err := database.CreateIfNotExist(cli.conf); err != nil {
		return err
	}

	db, err := database.Open(cli.conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err = database.Migrate(db.DB); err != nil {
		return err
	}
	fmt.Println("database migrated")
	return nil
}
