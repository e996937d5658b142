package main

import (
	"log"
	"os"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	logsvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/logger"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	cli := commandLine{
		conf:   conf,
		logger: logsvc.NewStdLogger(logger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
