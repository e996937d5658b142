package main

import (
	"fmt"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
	ed2gosvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/ed2go"
	edxsvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/edx"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database"
	pgrepos "github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database/postgres"
)

// populateProfiles backfills the chapter snapshots of completion profiles
// created before progress tracking existed.
func (cli *commandLine) populateProfiles() error {
	db, err := database.Open(cli.conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	lmsClient := edxsvc.NewClient(cli.conf)
	completionSvc := completion.NewService(
		pgrepos.NewCompletionRepository(db),
		user.NewService(pgrepos.NewUserRepository(db)),
		lmsClient, lmsClient, lmsClient,
		ed2gosvc.NewClient(cli.conf, cli.logger),
		cli.conf,
		cli.logger,
	)

	populated, err := completionSvc.PopulateChapters()
	if err != nil {
		return err
	}
	fmt.Printf("%d profile(s) populated\n", populated)
	return nil
}
