package main

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/session"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
	ed2gosvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/ed2go"
	edxsvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/edx"
	emailsvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/email"
	logsvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/logger"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database"
	pgrepos "github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database/postgres"
)

// The worker owns the two recurring jobs: pushing pending completion reports
// to the partner and sweeping idle course sessions.
func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	var logger core.Logger
	stdLog := log.New(os.Stdout, "WORKER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if conf.Debug {
		logger = logsvc.NewStdLogger(stdLog)
	} else {
		logger = logsvc.NewRollbarLogger(stdLog, conf)
	}

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

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

	c := cron.New()

	if _, err = c.AddFunc(conf.Ed2go.ReportSubmissionSchedule, func() {
		submitReports(conf, completionSvc, mailSvc, logger)
	}); err != nil {
		logger.Fatal("scheduling report submission", err)
	}
	if _, err = c.AddFunc(conf.Ed2go.SessionExpirySchedule, func() {
		closeStaleSessions(conf, sessionSvc, logger)
	}); err != nil {
		logger.Fatal("scheduling session expiry", err)
	}

	logger.Info(fmt.Sprintf("Worker started : version %q", conf.Build))
	c.Start()
	defer c.Stop()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: worker stopping", sig))
}

func submitReports(conf *core.Config, completions *completion.Service, mailSvc core.EmailService, logger core.Logger) {
	if !conf.Ed2go.CompletionReportingEnabled {
		return
	}

	sent, failed, err := completions.SubmitPendingReports()
	if err != nil {
		logger.Error("worker: submitting pending reports", err)
		return
	}
	logger.Info("worker: completion reports submitted", map[string]interface{}{
		"sent": sent, "failed": failed,
	})

	if failed > 0 && conf.Ed2go.ReportFailureAlertRecipient != "" {
		mailSvc.SendMessages(&core.EmailMessage{
			To:      []mail.Address{{Address: conf.Ed2go.ReportFailureAlertRecipient}},
			Subject: "Completion report submission failures",
			Body: fmt.Sprintf(
				"%d completion report(s) failed to submit; %d succeeded. See the worker logs for details.",
				failed, sent,
			),
		})
	}
}

func closeStaleSessions(conf *core.Config, sessions *session.Service, logger core.Logger) {
	closed, err := sessions.CloseStale(conf.Ed2go.SessionInactivityThreshold)
	if err != nil {
		logger.Error("worker: closing stale sessions", err)
		return
	}
	if closed > 0 {
		logger.Info("worker: stale sessions closed", map[string]interface{}{"count": closed})
	}
}
