package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/ExtensionEngineArchive/ed2go-edx-platform/apps/api/echo"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/registration"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/session"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
	ed2gosvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/ed2go"
	edxsvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/edx"
	logsvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/logger"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database"
	pgrepos "github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	var logger core.Logger
	stdLog := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if conf.Debug {
		logger = logsvc.NewStdLogger(stdLog)
	} else {
		logger = logsvc.NewRollbarLogger(stdLog, conf)
	}

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	usrSvc := user.NewService(pgrepos.NewUserRepository(db))
	lmsClient := edxsvc.NewClient(conf)
	partnerClient := ed2gosvc.NewClient(conf, logger)

	completionSvc := completion.NewService(
		pgrepos.NewCompletionRepository(db),
		usrSvc,
		lmsClient, lmsClient, lmsClient,
		partnerClient,
		conf,
		logger,
	)
	sessionSvc := session.NewService(pgrepos.NewSessionRepository(db), completionSvc, logger)
	completionSvc.BindSessionTimer(sessionSvc)

	registrationSvc := registration.NewService(partnerClient, completionSvc, usrSvc, logger)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		UserSvc:         usrSvc,
		SessionSvc:      sessionSvc,
		CompletionSvc:   completionSvc,
		RegistrationSvc: registrationSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}
